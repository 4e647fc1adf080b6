package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stonkbot/ledger-engine/internal/model"
)

// MongoStore implements Store on MongoDB, one document per profile.
// Decimal values are stored as strings so the database round-trips them
// exactly.
type MongoStore struct {
	profiles  *mongo.Collection
	snapshots *mongo.Collection
}

// NewMongoStore creates a Mongo-backed store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		profiles:  db.Collection("profiles"),
		snapshots: db.Collection("snapshots"),
	}
}

// ConnectMongo dials MongoDB and pings it before returning the client.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// --- document shapes (decimals as strings) ---

type mongoLot struct {
	Name          string    `bson:"name"`
	Ticker        string    `bson:"ticker"`
	Kind          string    `bson:"kind"`
	CreatedAt     time.Time `bson:"createdAt"`
	CreationPrice string    `bson:"creationPrice"`
	Quantity      int64     `bson:"quantity"`
}

type mongoTransaction struct {
	ID        string    `bson:"id"`
	Ticker    string    `bson:"ticker"`
	Kind      string    `bson:"securityKind"`
	Direction string    `bson:"direction"`
	CreatedAt time.Time `bson:"createdAt"`
	Price     string    `bson:"price"`
	Quantity  int64     `bson:"quantity"`
	Notional  string    `bson:"notional"`
}

type mongoProfile struct {
	UserID       string             `bson:"userId"`
	Lots         []mongoLot         `bson:"lots"`
	Transactions []mongoTransaction `bson:"transactions"`
	GlobalPL     string             `bson:"globalPL"`
	CostBasis    string             `bson:"costBasis"`
}

type mongoSnapshot struct {
	Date    time.Time `bson:"date"`
	Balance string    `bson:"balance"`
	Change  string    `bson:"change"`
}

func toMongoProfile(p *model.Profile) mongoProfile {
	doc := mongoProfile{
		UserID:       p.UserID,
		Lots:         []mongoLot{},
		Transactions: []mongoTransaction{},
		GlobalPL:     p.GlobalPL.String(),
		CostBasis:    p.CostBasis.String(),
	}
	for _, lot := range p.Lots {
		doc.Lots = append(doc.Lots, mongoLot{
			Name:          lot.Name,
			Ticker:        lot.Ticker,
			Kind:          string(lot.Kind),
			CreatedAt:     lot.CreatedAt,
			CreationPrice: lot.CreationPrice.String(),
			Quantity:      lot.Quantity,
		})
	}
	for _, txn := range p.Transactions {
		doc.Transactions = append(doc.Transactions, mongoTransaction{
			ID:        txn.ID,
			Ticker:    txn.Ticker,
			Kind:      string(txn.Kind),
			Direction: string(txn.Direction),
			CreatedAt: txn.CreatedAt,
			Price:     txn.Price.String(),
			Quantity:  txn.Quantity,
			Notional:  txn.Notional.String(),
		})
	}
	return doc
}

// fromMongoProfile rejects documents whose stored decimals do not
// parse; a corrupt accumulator must not silently load as zero.
func fromMongoProfile(doc mongoProfile) (*model.Profile, error) {
	p := model.NewProfile(doc.UserID)
	for _, lot := range doc.Lots {
		price, err := decimal.NewFromString(lot.CreationPrice)
		if err != nil {
			return nil, fmt.Errorf("decode lot creationPrice for %s: %w", doc.UserID, err)
		}
		p.Lots = append(p.Lots, model.Lot{
			Name:          lot.Name,
			Ticker:        lot.Ticker,
			Kind:          model.SecurityKind(lot.Kind),
			CreatedAt:     lot.CreatedAt,
			CreationPrice: price,
			Quantity:      lot.Quantity,
		})
	}
	for _, txn := range doc.Transactions {
		price, err := decimal.NewFromString(txn.Price)
		if err != nil {
			return nil, fmt.Errorf("decode transaction price for %s: %w", doc.UserID, err)
		}
		notional, err := decimal.NewFromString(txn.Notional)
		if err != nil {
			return nil, fmt.Errorf("decode transaction notional for %s: %w", doc.UserID, err)
		}
		p.Transactions = append(p.Transactions, model.Transaction{
			ID:        txn.ID,
			Ticker:    txn.Ticker,
			Kind:      model.SecurityKind(txn.Kind),
			Direction: model.Direction(txn.Direction),
			CreatedAt: txn.CreatedAt,
			Price:     price,
			Quantity:  txn.Quantity,
			Notional:  notional,
		})
	}
	var err error
	if p.GlobalPL, err = decimal.NewFromString(doc.GlobalPL); err != nil {
		return nil, fmt.Errorf("decode globalPL for %s: %w", doc.UserID, err)
	}
	if p.CostBasis, err = decimal.NewFromString(doc.CostBasis); err != nil {
		return nil, fmt.Errorf("decode costBasis for %s: %w", doc.UserID, err)
	}
	return p, nil
}

// --- Store implementation ---

func (s *MongoStore) LoadProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var doc mongoProfile
	err := s.profiles.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		p := model.NewProfile(userID)
		if err := s.SaveProfile(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return fromMongoProfile(doc)
}

func (s *MongoStore) SaveProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.profiles.ReplaceOne(ctx,
		bson.M{"userId": p.UserID},
		toMongoProfile(p),
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) ListUserIDs(ctx context.Context) ([]string, error) {
	raw, err := s.profiles.Distinct(ctx, "userId", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MongoStore) AppendSnapshot(ctx context.Context, userID string, snap model.Snapshot) error {
	doc := mongoSnapshot{
		Date:    snap.Date,
		Balance: snap.Balance.String(),
		Change:  snap.Change.String(),
	}
	_, err := s.snapshots.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$push": bson.M{"snapshots": doc}},
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) GetSnapshots(ctx context.Context, userID string) ([]model.Snapshot, error) {
	var doc struct {
		Snapshots []mongoSnapshot `bson:"snapshots"`
	}
	err := s.snapshots.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snaps := make([]model.Snapshot, 0, len(doc.Snapshots))
	for _, s := range doc.Snapshots {
		balance, err := decimal.NewFromString(s.Balance)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot balance for %s: %w", userID, err)
		}
		change, err := decimal.NewFromString(s.Change)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot change for %s: %w", userID, err)
		}
		snaps = append(snaps, model.Snapshot{Date: s.Date, Balance: balance, Change: change})
	}
	return snaps, nil
}
