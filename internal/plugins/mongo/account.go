package mongo

import (
	"context"

	"assist/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountRepo reads the platform users collection.
type AccountRepo struct {
	coll *mongo.Collection
}

func NewAccountRepo(coll *mongo.Collection) *AccountRepo {
	return &AccountRepo{coll: coll}
}

var accountProjection = bson.M{"firstName": 1, "lastName": 1, "email": 1, "assistKey": 1}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	var a domain.Account
	opts := options.FindOne().SetProjection(accountProjection)
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&a); err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &a, nil
}

func (r *AccountRepo) GetByAssistKey(ctx context.Context, key string) (*domain.Account, error) {
	if key == "" {
		return nil, domain.ErrTenantNotFound
	}
	var a domain.Account
	opts := options.FindOne().SetProjection(accountProjection)
	if err := r.coll.FindOne(ctx, bson.M{"assistKey": key}, opts).Decode(&a); err != nil {
		return nil, notFound(err, domain.ErrTenantNotFound)
	}
	return &a, nil
}

// SetAssistKey only writes when the account has no key yet.
func (r *AccountRepo) SetAssistKey(ctx context.Context, id, key string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "assistKey": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{"assistKey": key}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrKeyAlreadyExists
}

func (r *AccountRepo) Profiles(ctx context.Context, ids []string) (map[string]domain.Profile, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]domain.Profile, len(oids))
	if len(oids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"firstName": 1, "lastName": 1}))
	if err != nil {
		return nil, err
	}
	var accounts []domain.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		out[a.ID.Hex()] = a.Profile()
	}
	return out, nil
}
