package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL. Accumulators are
// stored as NUMERIC for exact decimal precision; the lot and transaction
// collections are JSONB documents owned by their profile row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var lotsJSON, txnsJSON []byte
	var globalPL, costBasis string

	err := s.pool.QueryRow(ctx,
		`SELECT lots, transactions, global_pl::TEXT, cost_basis::TEXT
		 FROM profiles WHERE user_id = $1`, userID).
		Scan(&lotsJSON, &txnsJSON, &globalPL, &costBasis)
	if errors.Is(err, pgx.ErrNoRows) {
		p := model.NewProfile(userID)
		if err := s.SaveProfile(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}

	p := model.NewProfile(userID)
	if err := json.Unmarshal(lotsJSON, &p.Lots); err != nil {
		return nil, fmt.Errorf("decode lots for %s: %w", userID, err)
	}
	if err := json.Unmarshal(txnsJSON, &p.Transactions); err != nil {
		return nil, fmt.Errorf("decode transactions for %s: %w", userID, err)
	}
	if p.GlobalPL, err = decimal.NewFromString(globalPL); err != nil {
		return nil, fmt.Errorf("decode global_pl for %s: %w", userID, err)
	}
	if p.CostBasis, err = decimal.NewFromString(costBasis); err != nil {
		return nil, fmt.Errorf("decode cost_basis for %s: %w", userID, err)
	}

	return p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p *model.Profile) error {
	lotsJSON, err := json.Marshal(lotsOrEmpty(p.Lots))
	if err != nil {
		return err
	}
	txnsJSON, err := json.Marshal(txnsOrEmpty(p.Transactions))
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, lots, transactions, global_pl, cost_basis)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (user_id) DO UPDATE SET
		     lots = EXCLUDED.lots,
		     transactions = EXCLUDED.transactions,
		     global_pl = EXCLUDED.global_pl,
		     cost_basis = EXCLUDED.cost_basis`,
		p.UserID, lotsJSON, txnsJSON, p.GlobalPL.String(), p.CostBasis.String())
	return err
}

func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) AppendSnapshot(ctx context.Context, userID string, snap model.Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (user_id, date, balance, change)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC)`,
		userID, snap.Date, snap.Balance.String(), snap.Change.String())
	return err
}

func (s *PostgresStore) GetSnapshots(ctx context.Context, userID string) ([]model.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, balance::TEXT, change::TEXT
		 FROM snapshots WHERE user_id = $1 ORDER BY date`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var balance, change string
		if err := rows.Scan(&snap.Date, &balance, &change); err != nil {
			return nil, err
		}
		if snap.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("decode snapshot balance for %s: %w", userID, err)
		}
		if snap.Change, err = decimal.NewFromString(change); err != nil {
			return nil, fmt.Errorf("decode snapshot change for %s: %w", userID, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// lotsOrEmpty keeps an empty collection encoded as [] rather than null.
func lotsOrEmpty(lots []model.Lot) []model.Lot {
	if lots == nil {
		return []model.Lot{}
	}
	return lots
}

func txnsOrEmpty(txns []model.Transaction) []model.Transaction {
	if txns == nil {
		return []model.Transaction{}
	}
	return txns
}
