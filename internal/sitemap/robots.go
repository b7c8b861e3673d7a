package sitemap

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type rule struct {
	pattern string
	allow   bool
	re      *regexp.Regexp
}

// Rules are the robots.txt directives that apply to one user agent.
// Build them with ParseRobots.
type Rules struct {
	Sitemaps   []string
	Allow      []string
	Disallow   []string
	CrawlDelay time.Duration

	rules []rule
}

type group struct {
	agents   []string
	allow    []string
	disallow []string
	delay    time.Duration
}

// ParseRobots parses a robots.txt body for userAgent. The most specific
// matching user-agent group wins, otherwise the * group applies. Sitemap
// lines apply regardless of group.
func ParseRobots(body, userAgent string) *Rules {
	ua := strings.ToLower(userAgent)
	rules := &Rules{}

	var groups []*group
	var current *group
	lastWasAgent := false

	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		directive, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		directive = strings.ToLower(strings.TrimSpace(directive))
		value = strings.TrimSpace(value)

		switch directive {
		case "user-agent":
			if !lastWasAgent || current == nil {
				current = &group{}
				groups = append(groups, current)
			}
			current.agents = append(current.agents, strings.ToLower(value))
			lastWasAgent = true
			continue
		case "sitemap":
			if value != "" {
				rules.Sitemaps = append(rules.Sitemaps, value)
			}
		case "allow":
			if current != nil && value != "" {
				current.allow = append(current.allow, value)
			}
		case "disallow":
			if current != nil && value != "" {
				current.disallow = append(current.disallow, value)
			}
		case "crawl-delay":
			if current != nil {
				if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
					current.delay = time.Duration(secs * float64(time.Second))
				}
			}
		}
		lastWasAgent = false
	}

	var chosen []*group
	bestLen := -1
	for _, g := range groups {
		for _, agent := range g.agents {
			if agent == "*" || !strings.HasPrefix(ua, agent) {
				continue
			}
			if len(agent) > bestLen {
				bestLen = len(agent)
				chosen = []*group{g}
			} else if len(agent) == bestLen {
				chosen = append(chosen, g)
			}
		}
	}
	if chosen == nil {
		for _, g := range groups {
			for _, agent := range g.agents {
				if agent == "*" {
					chosen = append(chosen, g)
					break
				}
			}
		}
	}

	for _, g := range chosen {
		rules.Allow = append(rules.Allow, g.allow...)
		rules.Disallow = append(rules.Disallow, g.disallow...)
		if g.delay > rules.CrawlDelay {
			rules.CrawlDelay = g.delay
		}
	}
	rules.compile()
	return rules
}

func (r *Rules) compile() {
	r.rules = r.rules[:0]
	for _, p := range r.Allow {
		r.rules = append(r.rules, rule{pattern: p, allow: true, re: compilePattern(p)})
	}
	for _, p := range r.Disallow {
		r.rules = append(r.rules, rule{pattern: p, allow: false, re: compilePattern(p)})
	}
}

// compilePattern turns a robots path pattern into an anchored regexp.
// * matches any sequence and a trailing $ anchors the end.
func compilePattern(p string) *regexp.Regexp {
	anchored := strings.HasSuffix(p, "$")
	p = strings.TrimSuffix(p, "$")

	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(p), `\*`, ".*")
	if anchored {
		expr += "$"
	}
	return regexp.MustCompile(expr)
}

// Allowed reports whether path may be crawled. The longest matching pattern
// decides and Allow wins a tie. A full URL is reduced to its path and query.
func (r *Rules) Allowed(path string) bool {
	if r == nil {
		return true
	}
	if u, err := url.Parse(path); err == nil && u.Host != "" {
		path = u.EscapedPath()
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	}
	if path == "" {
		path = "/"
	}

	bestLen := -1
	allowed := true
	for _, rl := range r.rules {
		if !rl.re.MatchString(path) {
			continue
		}
		n := len(rl.pattern)
		if n > bestLen || (n == bestLen && rl.allow) {
			bestLen = n
			allowed = rl.allow
		}
	}
	return allowed
}
