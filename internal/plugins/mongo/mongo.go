package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"assist/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func New(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// Health check
	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the assist collections rely on. The
// users collection belongs to the account service and is left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database, cfg config.MongoConfig) error {
	_, err := db.Collection(cfg.TicketsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "appKey", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "appKey", Value: 1}, {Key: "visitor._id", Value: 1}}},
		{Keys: bson.D{{Key: "visitor.receivedMail", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("tickets indexes: %w", err)
	}
	_, err = db.Collection(cfg.SettingsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "appKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("settings indexes: %w", err)
	}
	return nil
}

// containsFold matches s anywhere, ignoring case.
func containsFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel
	}
	return err
}

type countFacet struct {
	N int64 `bson:"n"`
}

func facetTotal(c []countFacet) int64 {
	if len(c) == 0 {
		return 0
	}
	return c[0].N
}

func pageStages(skip, limit int64) bson.A {
	stages := bson.A{bson.D{{Key: "$skip", Value: skip}}}
	if limit > 0 {
		stages = append(stages, bson.D{{Key: "$limit", Value: limit}})
	}
	return stages
}
