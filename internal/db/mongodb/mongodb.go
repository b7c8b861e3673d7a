package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/shared"
)

// MongoDB implements db.ResultStore on a MongoDB database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	config   *db.Config
}

const collDiscoveries = "discoveries"

// New creates a new MongoDB store instance
func New(config *db.Config) (*MongoDB, error) {
	if config == nil || config.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if config.Database == "" {
		config.Database = "compscout"
	}
	return &MongoDB{
		config: config,
	}, nil
}

// Connect establishes connection to MongoDB
func (m *MongoDB) Connect(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(m.config.URI)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	m.database = client.Database(m.config.Database)

	if err := m.createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// Ping checks the database connection
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.client == nil {
		return db.ErrNotConnected
	}
	return m.client.Ping(ctx, nil)
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "domain", Value: 1},
				{Key: "completedAt", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "completedAt", Value: -1},
			},
		},
	}

	_, err := m.database.Collection(collDiscoveries).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create discovery indexes: %w", err)
	}
	return nil
}

// SaveDiscovery upserts a discovery run keyed by its id
func (m *MongoDB) SaveDiscovery(ctx context.Context, result *models.DiscoveryResult) error {
	if m.database == nil {
		return db.ErrNotConnected
	}
	if result == nil || result.ID == "" {
		return fmt.Errorf("discovery id is required")
	}

	doc := *result
	doc.Domain = shared.NormalizeDomain(result.Domain)
	doc.StartedAt = result.StartedAt.UTC()
	doc.CompletedAt = result.CompletedAt.UTC()

	_, err := m.database.Collection(collDiscoveries).ReplaceOne(ctx,
		bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save discovery %s: %w", result.ID, err)
	}
	return nil
}

// GetDiscovery loads one discovery run by id
func (m *MongoDB) GetDiscovery(ctx context.Context, id string) (*models.DiscoveryResult, error) {
	if m.database == nil {
		return nil, db.ErrNotConnected
	}

	var result models.DiscoveryResult
	err := m.database.Collection(collDiscoveries).FindOne(ctx, bson.M{"_id": id}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDiscoveries returns the latest runs, newest first. An empty domain
// lists every domain.
func (m *MongoDB) ListDiscoveries(ctx context.Context, domain string, limit int) ([]*models.DiscoveryResult, error) {
	if m.database == nil {
		return nil, db.ErrNotConnected
	}

	filter := bson.M{}
	if domain != "" {
		filter["domain"] = shared.NormalizeDomain(domain)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetLimit(int64(db.Limit(limit)))

	return m.find(ctx, filter, opts)
}

// TopCompetitors tallies competitors over every stored run of domain, or of
// all domains when domain is empty
func (m *MongoDB) TopCompetitors(ctx context.Context, domain string, limit int) ([]db.CompetitorCount, error) {
	if m.database == nil {
		return nil, db.ErrNotConnected
	}

	filter := bson.M{}
	if domain != "" {
		filter["domain"] = shared.NormalizeDomain(domain)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: 1}}).
		SetProjection(bson.M{"competitors.domain": 1, "competitors.matchScore": 1, "completedAt": 1})
	results, err := m.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return db.TallyCompetitors(results, limit), nil
}

func (m *MongoDB) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.DiscoveryResult, error) {
	cursor, err := m.database.Collection(collDiscoveries).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []*models.DiscoveryResult{}
	for cursor.Next(ctx) {
		var result models.DiscoveryResult
		if err := cursor.Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode discovery: %w", err)
		}
		results = append(results, &result)
	}
	return results, cursor.Err()
}
