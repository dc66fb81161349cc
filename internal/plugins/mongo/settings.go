package mongo

import (
	"context"
	"time"

	"assist/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SettingsRepo struct {
	coll *mongo.Collection
}

func NewSettingsRepo(coll *mongo.Collection) *SettingsRepo {
	return &SettingsRepo{coll: coll}
}

// Ensure upserts defaults with $setOnInsert, so concurrent first reads
// converge on one document.
func (r *SettingsRepo) Ensure(ctx context.Context, defaults *domain.Settings) (*domain.Settings, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       defaults.ID,
		"name":      defaults.Name,
		"color":     defaults.Color,
		"url":       defaults.URL,
		"createdAt": defaults.CreatedAt,
		"updatedAt": defaults.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var st domain.Settings
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"appKey": defaults.AppKey}, update, opts).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *SettingsRepo) GetByAppKey(ctx context.Context, appKey string) (*domain.Settings, error) {
	var st domain.Settings
	if err := r.coll.FindOne(ctx, bson.M{"appKey": appKey}).Decode(&st); err != nil {
		return nil, notFound(err, domain.ErrSettingsNotFound)
	}
	return &st, nil
}

func (r *SettingsRepo) Update(ctx context.Context, appKey string, patch domain.SettingsPatch, now time.Time) (*domain.Settings, error) {
	set := bson.M{"updatedAt": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Color != nil {
		set["color"] = *patch.Color
	}
	if patch.URL != nil {
		set["url"] = *patch.URL
	}
	var st domain.Settings
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"appKey": appKey}, bson.M{"$set": set}, returnAfter).Decode(&st)
	if err != nil {
		return nil, notFound(err, domain.ErrSettingsNotFound)
	}
	return &st, nil
}
