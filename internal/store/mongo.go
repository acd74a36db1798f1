package store

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HARSHARORA2812/Vichola/internal/domain"
)

// MongoStore keeps one document per thread, keyed by the canonical pair
// key. Uniqueness per participant pair is enforced by the _id itself:
// concurrent get-or-create calls race on the same key and the upsert
// converges on a single document.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
		Options: options.Index().SetName("participants_updated_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &MongoStore{coll: coll}
}

func (s *MongoStore) GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	key := domain.PairKey(userA, userB)
	now := time.Now().UTC()
	participants := []string{userA, userB}
	sort.Strings(participants)

	res := s.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{
			"_id":          key,
			"participants": participants,
			"messages":     []domain.Message{},
			"created_at":   now,
			"updated_at":   now,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var t domain.Thread
	if err := res.Decode(&t); err != nil {
		return nil, err
	}
	if t.Messages == nil {
		t.Messages = []domain.Message{}
	}
	return &t, nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, userA, userB string, msg domain.Message) (*domain.Thread, error) {
	// Appending to a never-fetched pair still creates the thread first, so
	// the push below always targets an existing document.
	if _, err := s.GetOrCreateThread(ctx, userA, userB); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	key := domain.PairKey(userA, userB)
	res := s.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": key},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updated_at": msg.CreatedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var t domain.Thread
	if err := res.Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) ListThreadsForUser(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.ThreadSummary{}
	for cur.Next(ctx) {
		var t domain.Thread
		if err := cur.Decode(&t); err != nil {
			return nil, err
		}
		out = append(out, domain.ThreadSummary{
			ThreadID:     t.ID,
			Peer:         t.Peer(userID),
			LastMessage:  t.LastMessage(),
			MessageCount: len(t.Messages),
			UpdatedAt:    t.UpdatedAt,
		})
	}
	return out, cur.Err()
}
