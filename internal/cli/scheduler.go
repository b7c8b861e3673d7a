package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run recurring discoveries",
	Long:  `Run the discovery watches configured under 'watches' on their cron schedules.`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler",
	Args:  cobra.NoArgs,
	RunE:  runSchedulerStart,
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured watches and their next run",
	Args:  cobra.NoArgs,
	RunE:  runSchedulerList,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [watch]",
	Short: "Run one watch now",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerRun,
}

func init() {
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func newScheduler(ctx context.Context) (*scheduler.Scheduler, *pipeline, db.ResultStore, error) {
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		p.Close()
		return nil, nil, nil, err
	}

	return scheduler.New(p.competitors, store, cfg.Watches), p, store, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s🚀 Start Scheduler%s\n", HeaderStyle, Reset)
	fmt.Fprintf(out, "%s=================%s\n", DimStyle, Reset)
	fmt.Fprintln(out)

	if len(cfg.Watches) == 0 {
		fmt.Fprintf(out, "%s❌ No watches configured%s\n", ErrorStyle, Reset)
		fmt.Fprintf(out, "%s💡 Add entries under 'watches' in %s%s\n", InfoStyle, cfgFile, Reset)
		return nil
	}

	sched, p, store, err := newScheduler(ctx)
	if err != nil {
		return err
	}
	defer p.Close()
	defer closeStore(store)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	entries := sched.Entries()
	for i, e := range entries {
		fmt.Fprintf(out, "  %s%d.%s %s\n", CountStyle, i+1, Reset, FormatValue(e.Name))
		fmt.Fprintf(out, "     %s%s | cron %s | next %s%s\n", DimStyle, e.Domain, e.Schedule, e.Next.Local().Format(time.RFC1123), Reset)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s✅ Running %s watch(es). Press Ctrl+C to stop.%s\n", SuccessStyle, FormatCount(len(entries)), Reset)

	<-ctx.Done()
	fmt.Fprintf(out, "\n%s⏹️  Stopping scheduler...%s\n", InfoStyle, Reset)
	sched.Stop()
	fmt.Fprintf(out, "%s✅ Scheduler stopped%s\n", SuccessStyle, Reset)
	return nil
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	if len(cfg.Watches) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%sNo watches configured.%s\n", WarningStyle, Reset)
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sNAME\tDOMAIN\tSCHEDULE\tNEXT RUN%s\n", LabelStyle, Reset)
	for _, w := range cfg.Watches {
		next := "disabled"
		if !w.Disabled {
			if sched, err := cron.ParseStandard(w.Schedule); err != nil {
				next = "invalid: " + err.Error()
			} else {
				next = sched.Next(now).Local().Format("2006-01-02 15:04")
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.Name, w.Domain, w.Schedule, next)
	}
	return tw.Flush()
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	sched, p, store, err := newScheduler(ctx)
	if err != nil {
		return err
	}
	defer p.Close()
	defer closeStore(store)

	logger.Info("Running watch %s", args[0])
	result, err := sched.RunNow(ctx, args[0])
	if result != nil {
		printResult(cmd.OutOrStdout(), result)
	}
	return err
}
