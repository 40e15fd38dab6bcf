package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const sessionsCollection = "sessions"

type DB struct {
	Client   *mongo.Client
	Sessions *mongo.Collection
	log      *zap.Logger
}

// Connect dials MongoDB, retrying a few times before giving up, and makes
// sure the session indexes exist.
func Connect(ctx context.Context, uri, name string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("mongo")

	var (
		client *mongo.Client
		err    error
	)
	for attempt := 1; attempt <= 3; attempt++ {
		client, err = dial(ctx, uri)
		if err == nil {
			break
		}
		log.Warn("mongo connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	db := client.Database(name)
	d := &DB{Client: client, Sessions: db.Collection(sessionsCollection), log: log}

	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = d.Sessions.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create session index: %w", err)
	}

	log.Info("connected to mongo", zap.String("database", name))
	return d, nil
}

func dial(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func (d *DB) Disconnect() error {
	if d == nil || d.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Client.Disconnect(ctx); err != nil {
		return err
	}
	d.log.Info("disconnected from mongo")
	return nil
}
