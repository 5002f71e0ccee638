// internal/database/mongodb.go
package database

import (
	"context"
	"fmt"
	"time"

	"prosignum/internal/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(cfg *config.Config) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MongoTimeout)*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.DatabaseName)

	logrus.WithField("database", cfg.DatabaseName).Info("Connected to MongoDB")

	return &MongoDB{
		Client:   client,
		Database: database,
	}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	logrus.Info("Disconnected from MongoDB")
	return nil
}

// CreateIndexes creates the indexes for all collections. The unique indexes
// are load-bearing: one signature per (initiative, participant), one profile
// per identity hash, one municipality per BFS number, one participant and one
// reviewer assignment per user.
// NOTE: bson.D is used instead of maps to keep key order stable.
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := m.Database.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	municipalityIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "bfs_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "canton", Value: 1}, {Key: "name", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "postal_code", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("municipalities").Indexes().CreateMany(ctx, municipalityIndexes); err != nil {
		return fmt.Errorf("failed to create municipality indexes: %w", err)
	}

	initiativeIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "creator_id", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("initiatives").Indexes().CreateMany(ctx, initiativeIndexes); err != nil {
		return fmt.Errorf("failed to create initiative indexes: %w", err)
	}

	participantIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "ahv_number", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("participants").Indexes().CreateMany(ctx, participantIndexes); err != nil {
		return fmt.Errorf("failed to create participant indexes: %w", err)
	}

	signatureIndexes := []mongo.IndexModel{
		{
			// One signature per participant per initiative. The handlers treat
			// a duplicate-key error on insert as "already signed".
			Keys:    bson.D{{Key: "initiative_id", Value: 1}, {Key: "participant_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "initiative_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "municipality_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "signed_at", Value: -1}},
		},
	}
	if _, err := m.Database.Collection("signatures").Indexes().CreateMany(ctx, signatureIndexes); err != nil {
		return fmt.Errorf("failed to create signature indexes: %w", err)
	}

	verificationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "local_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "verification_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := m.Database.Collection("eid_verifications").Indexes().CreateMany(ctx, verificationIndexes); err != nil {
		return fmt.Errorf("failed to create verification indexes: %w", err)
	}

	profileIndexes := []mongo.IndexModel{
		{
			// The identity-matching key. Concurrent completion handling relies
			// on this index to guarantee at most one profile per identity.
			Keys:    bson.D{{Key: "eid_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Database.Collection("eid_profiles").Indexes().CreateMany(ctx, profileIndexes); err != nil {
		return fmt.Errorf("failed to create profile indexes: %w", err)
	}

	assignmentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "municipality_ids", Value: 1}},
		},
	}
	if _, err := m.Database.Collection("reviewer_assignments").Indexes().CreateMany(ctx, assignmentIndexes); err != nil {
		return fmt.Errorf("failed to create reviewer assignment indexes: %w", err)
	}

	logrus.Info("Database indexes created")
	return nil
}
