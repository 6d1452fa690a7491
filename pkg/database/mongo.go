package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI             string
	Database        string
	MaxPoolSize     uint64
	ConnectTimeout  time.Duration
	ServerSelection time.Duration
}

// DefaultMongoConfig returns defaults for a local MongoDB.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:             "mongodb://localhost:27017",
		Database:        "siyana",
		MaxPoolSize:     50,
		ConnectTimeout:  10 * time.Second,
		ServerSelection: 5 * time.Second,
	}
}

// NewMongoClient connects to MongoDB and pings the primary, retrying
// transient failures. Callers disconnect the client on shutdown.
func NewMongoClient(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("storefront").
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelection)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	_, err = withRetry(ctx, "mongo", logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
