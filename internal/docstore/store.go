// Package docstore persists documents in MongoDB.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finbits/internal/core"
)

const (
	budgetsCollection  = "budgets"
	bitsCollection     = "bits"
	progressCollection = "progress"
	profilesCollection = "profiles"
)

type Store struct {
	client   *mongo.Client
	budgets  *mongo.Collection
	bits     *mongo.Collection
	progress *mongo.Collection
	profiles *mongo.Collection
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		budgets:  db.Collection(budgetsCollection),
		bits:     db.Collection(bitsCollection),
		progress: db.Collection(progressCollection),
		profiles: db.Collection(profilesCollection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.budgets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create budgets index: %w", err)
	}
	if _, err := s.bits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create bits index: %w", err)
	}
	if _, err := s.progress.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "bit_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create progress index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func objectID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return oid, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("find %s: %w", kind, err)
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = ""
	doc, err := budgetToDoc(b)
	if err != nil {
		return core.Budget{}, err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := s.budgets.InsertOne(ctx, doc); err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	b.ID = doc.ID.Hex()
	return b, nil
}

func (s *Store) GetBudget(ctx context.Context, owner, id string) (core.Budget, error) {
	oid, err := objectID("budget", id)
	if err != nil {
		return core.Budget{}, err
	}
	var doc budgetDoc
	if err := s.budgets.FindOne(ctx, bson.M{"_id": oid, "owner": owner}).Decode(&doc); err != nil {
		return core.Budget{}, notFound(err, "budget", id)
	}
	return docToBudget(doc)
}

func (s *Store) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	cur, err := s.budgets.Find(ctx, bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var docs []budgetDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(docs))
	for _, d := range docs {
		b, err := docToBudget(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) SaveBudget(ctx context.Context, b core.Budget) error {
	doc, err := budgetToDoc(b)
	if err != nil {
		return err
	}
	res, err := s.budgets.ReplaceOne(ctx, bson.M{"_id": doc.ID, "owner": b.Owner}, doc)
	if err != nil {
		return fmt.Errorf("replace budget: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, owner, id string) error {
	oid, err := objectID("budget", id)
	if err != nil {
		return err
	}
	res, err := s.budgets.DeleteOne(ctx, bson.M{"_id": oid, "owner": owner})
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateBit(ctx context.Context, b core.Bit) (core.Bit, error) {
	doc := bitToDoc(b)
	doc.ID = primitive.NewObjectID()
	if _, err := s.bits.InsertOne(ctx, doc); err != nil {
		return core.Bit{}, fmt.Errorf("insert bit: %w", err)
	}
	b.ID = doc.ID.Hex()
	return b, nil
}

func (s *Store) GetBit(ctx context.Context, id string) (core.Bit, error) {
	oid, err := objectID("bit", id)
	if err != nil {
		return core.Bit{}, err
	}
	var doc bitDoc
	if err := s.bits.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return core.Bit{}, notFound(err, "bit", id)
	}
	return docToBit(doc), nil
}

func (s *Store) ListBits(ctx context.Context, activeOnly bool) ([]core.Bit, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := s.bits.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list bits: %w", err)
	}
	var docs []bitDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bits: %w", err)
	}
	out := make([]core.Bit, 0, len(docs))
	for _, d := range docs {
		out = append(out, docToBit(d))
	}
	return out, nil
}

func (s *Store) DeleteBit(ctx context.Context, id string) error {
	oid, err := objectID("bit", id)
	if err != nil {
		return err
	}
	res, err := s.bits.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete bit: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("bit %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, userID, bitID string) (core.Progress, error) {
	var doc progressDoc
	err := s.progress.FindOne(ctx, bson.M{"user_id": userID, "bit_id": bitID}).Decode(&doc)
	if err != nil {
		return core.Progress{}, notFound(err, "progress", userID+"/"+bitID)
	}
	return docToProgress(doc), nil
}

func (s *Store) SaveProgress(ctx context.Context, p core.Progress) error {
	_, err := s.progress.ReplaceOne(ctx,
		bson.M{"user_id": p.UserID, "bit_id": p.BitID},
		progressToDoc(p),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *Store) DeleteProgressForBit(ctx context.Context, bitID string) error {
	if _, err := s.progress.DeleteMany(ctx, bson.M{"bit_id": bitID}); err != nil {
		return fmt.Errorf("delete progress for bit: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	var doc profileDoc
	if err := s.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		return core.Profile{}, notFound(err, "profile", userID)
	}
	return docToProfile(doc), nil
}

func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	_, err := s.profiles.ReplaceOne(ctx, bson.M{"_id": p.UserID}, profileToDoc(p), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
