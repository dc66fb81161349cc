package mongo

import (
	"context"
	"time"

	"assist/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TicketRepo struct {
	coll     *mongo.Collection
	settings string
}

// NewTicketRepo stores tickets in coll. settingsColl names the collection
// joined by the notification sweep.
func NewTicketRepo(coll *mongo.Collection, settingsColl string) *TicketRepo {
	return &TicketRepo{coll: coll, settings: settingsColl}
}

func scopeFilter(scope domain.TicketScope) bson.M {
	f := bson.M{"_id": scope.TicketID, "appKey": scope.AppKey}
	if scope.VisitorID != "" {
		f["visitor._id"] = scope.VisitorID
	}
	return f
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

func (r *TicketRepo) Get(ctx context.Context, scope domain.TicketScope) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := r.coll.FindOne(ctx, scopeFilter(scope)).Decode(&t); err != nil {
		return nil, notFound(err, domain.ErrTicketNotFound)
	}
	return &t, nil
}

func (r *TicketRepo) AppendMessage(ctx context.Context, scope domain.TicketScope, msg domain.Message, reopen bool) (*domain.Ticket, error) {
	set := bson.M{"updatedAt": msg.CreatedAt}
	if reopen {
		set["status"] = domain.StatusOpen
	}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  set,
	}
	return r.findAndUpdate(ctx, scopeFilter(scope), update, returnAfter)
}

// ToggleStatus flips the status inside a single pipeline update.
func (r *TicketRepo) ToggleStatus(ctx context.Context, scope domain.TicketScope, now time.Time) (*domain.Ticket, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"status": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", domain.StatusOpen}},
				domain.StatusClosed,
				domain.StatusOpen,
			}},
			"updatedAt": now,
		}}},
	}
	return r.findAndUpdate(ctx, scopeFilter(scope), update, returnAfter)
}

func (r *TicketRepo) UpdateVisitor(ctx context.Context, scope domain.TicketScope, name, email string, now time.Time) (*domain.Ticket, error) {
	update := bson.M{"$set": bson.M{
		"visitor.name":                name,
		"visitor.email":               email,
		"updatedAt":                   now,
		"messages.$[own].sentBy.name": name,
	}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{Filters: []interface{}{
			bson.M{"own.sentBy.kind": domain.AuthorVisitor, "own.sentBy._id": scope.VisitorID, "own.isBot": false},
		}})
	return r.findAndUpdate(ctx, scopeFilter(scope), update, opts)
}

func (r *TicketRepo) MarkSeen(ctx context.Context, scope domain.TicketScope, viewerID string) error {
	res, err := r.coll.UpdateOne(ctx, scopeFilter(scope), bson.M{
		"$addToSet": bson.M{"messages.$[].seenBy": viewerID},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepo) ClearReceivedMail(ctx context.Context, scope domain.TicketScope) error {
	res, err := r.coll.UpdateOne(ctx, scopeFilter(scope), bson.M{
		"$set": bson.M{"visitor.receivedMail": false},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepo) List(ctx context.Context, q domain.TicketQuery) ([]domain.TicketSummary, int64, error) {
	cur, err := r.coll.Aggregate(ctx, listPipeline(q))
	if err != nil {
		return nil, 0, err
	}
	var out []struct {
		Data  []domain.TicketSummary `bson:"data"`
		Total []countFacet           `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 {
		return []domain.TicketSummary{}, 0, nil
	}
	return out[0].Data, facetTotal(out[0].Total), nil
}

func listPipeline(q domain.TicketQuery) mongo.Pipeline {
	match := bson.M{"appKey": q.AppKey}
	if q.VisitorID != "" {
		match["visitor._id"] = q.VisitorID
	}
	if q.Status != "" {
		match["status"] = q.Status
	}
	if q.Search != "" {
		match["visitor.name"] = containsFold(q.Search)
	}
	unread := bson.M{"$size": bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}},
		"as":    "m",
		"cond": bson.M{"$not": bson.A{
			bson.M{"$in": bson.A{q.ViewerID, bson.M{"$ifNull": bson.A{"$$m.seenBy", bson.A{}}}}},
		}},
	}}}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$project", Value: bson.M{
			"appKey":        1,
			"visitor":       1,
			"status":        1,
			"createdAt":     1,
			"updatedAt":     1,
			"unreadCount":   unread,
			"messageCount":  bson.M{"$size": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}},
			"lastMessageAt": bson.M{"$ifNull": bson.A{bson.M{"$max": "$messages.createdAt"}, "$createdAt"}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "lastMessageAt", Value: -1},
			{Key: "unreadCount", Value: -1},
			{Key: "_id", Value: -1},
		}}},
		{{Key: "$facet", Value: bson.M{
			"data":  pageStages(q.Skip, q.Limit),
			"total": bson.A{bson.D{{Key: "$count", Value: "n"}}},
		}}},
	}
}

func (r *TicketRepo) Messages(ctx context.Context, scope domain.TicketScope, q domain.MessageQuery) ([]domain.Message, int64, error) {
	if _, err := r.Get(ctx, scope); err != nil {
		return nil, 0, err
	}
	cur, err := r.coll.Aggregate(ctx, messagesPipeline(scope, q))
	if err != nil {
		return nil, 0, err
	}
	var out []struct {
		Data  []domain.Message `bson:"data"`
		Total []countFacet     `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 {
		return []domain.Message{}, 0, nil
	}
	return out[0].Data, facetTotal(out[0].Total), nil
}

// messagesPipeline returns the thread newest first. Array position breaks
// ties between messages sharing a timestamp.
func messagesPipeline(scope domain.TicketScope, q domain.MessageQuery) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: scopeFilter(scope)}},
		{{Key: "$project", Value: bson.M{"messages": 1}}},
		{{Key: "$unwind", Value: bson.M{"path": "$messages", "includeArrayIndex": "position"}}},
	}
	if q.Search != "" {
		p = append(p, bson.D{{Key: "$match", Value: bson.M{"messages.message": containsFold(q.Search)}}})
	}
	return append(p,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "position", Value: -1}}}},
		bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$messages"}}},
		bson.D{{Key: "$facet", Value: bson.M{
			"data":  pageStages(q.Skip, q.Limit),
			"total": bson.A{bson.D{{Key: "$count", Value: "n"}}},
		}}},
	)
}

func (r *TicketRepo) PendingNotifications(ctx context.Context) ([]domain.PendingNotification, error) {
	cur, err := r.coll.Aggregate(ctx, pendingPipeline(r.settings))
	if err != nil {
		return nil, err
	}
	var out []domain.PendingNotification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// pendingPipeline selects tickets with at least one message the visitor has
// not seen and joins the tenant settings.
func pendingPipeline(settingsColl string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"visitor.receivedMail": bson.M{"$ne": true}}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$match", Value: bson.M{"$expr": bson.M{"$not": bson.A{
			bson.M{"$in": bson.A{"$visitor._id", bson.M{"$ifNull": bson.A{"$messages.seenBy", bson.A{}}}}},
		}}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$_id",
			"appKey":      bson.M{"$first": "$appKey"},
			"visitor":     bson.M{"$first": "$visitor"},
			"unseenCount": bson.M{"$sum": 1},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         settingsColl,
			"localField":   "appKey",
			"foreignField": "appKey",
			"as":           "settings",
		}}},
		{{Key: "$project", Value: bson.M{
			"appKey":      1,
			"visitor":     1,
			"unseenCount": 1,
			"tenantName":  bson.M{"$ifNull": bson.A{bson.M{"$first": "$settings.name"}, ""}},
			"tenantUrl":   bson.M{"$ifNull": bson.A{bson.M{"$first": "$settings.url"}, ""}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func (r *TicketRepo) MarkMailed(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "$expr": hasUnseenByVisitor()},
		bson.M{"$set": bson.M{"visitor.receivedMail": true}},
	)
	return err
}

// hasUnseenByVisitor is true while some message lacks the visitor in seenBy.
// A read that lands between selection and marking leaves the flag unset.
func hasUnseenByVisitor() bson.M {
	return bson.M{"$anyElementTrue": bson.A{bson.M{"$map": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}},
		"as":    "m",
		"in": bson.M{"$not": bson.A{
			bson.M{"$in": bson.A{"$visitor._id", bson.M{"$ifNull": bson.A{"$$m.seenBy", bson.A{}}}}},
		}},
	}}}}
}

func (r *TicketRepo) findAndUpdate(ctx context.Context, filter, update interface{}, opts *options.FindOneAndUpdateOptions) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&t); err != nil {
		return nil, notFound(err, domain.ErrTicketNotFound)
	}
	return &t, nil
}
