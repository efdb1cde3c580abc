package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/checkout"
)

const (
	getSessionSQL = `SELECT id, user_id, lines, manual_code, updated_at
		FROM cart_sessions WHERE id = $1`

	saveSessionSQL = `INSERT INTO cart_sessions (id, user_id, lines, manual_code, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			lines = EXCLUDED.lines,
			manual_code = EXCLUDED.manual_code,
			updated_at = EXCLUDED.updated_at`

	deleteSessionSQL = `DELETE FROM cart_sessions WHERE id = $1`
)

var _ checkout.SessionStore = (*SessionStore)(nil)

// SessionStore implements checkout.SessionStore backed by PostgreSQL, with
// cart lines serialized into a JSONB column.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore returns a SessionStore that uses the given pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// lineJSON is the JSONB shape of a persisted cart line. Unit prices are
// stored as decimal strings to avoid float drift.
type lineJSON struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id,omitempty"`
	Name       string `json:"name,omitempty"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// Get loads a session state. Returns checkout.ErrSessionNotFound when the
// cart has never been persisted.
func (s *SessionStore) Get(ctx context.Context, id string) (*checkout.SessionState, error) {
	var (
		state checkout.SessionState
		raw   []byte
	)
	err := s.pool.QueryRow(ctx, getSessionSQL, id).Scan(
		&state.ID, &state.UserID, &raw, &state.ManualCode, &state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading cart session %q: %w", id, err)
	}

	var lines []lineJSON
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("decoding cart session %q lines: %w", id, err)
	}
	state.Lines = make([]cart.Line, len(lines))
	for i, l := range lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("decoding cart session %q line price: %w", id, err)
		}
		state.Lines[i] = cart.Line{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			Name:       l.Name,
			UnitPrice:  price,
			Quantity:   l.Quantity,
		}
	}
	return &state, nil
}

// Save upserts a session state.
func (s *SessionStore) Save(ctx context.Context, state checkout.SessionState) error {
	lines := make([]lineJSON, len(state.Lines))
	for i, l := range state.Lines {
		lines[i] = lineJSON{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice.StringFixed(2),
			Quantity:   l.Quantity,
		}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encoding cart session %q lines: %w", state.ID, err)
	}

	_, err = s.pool.Exec(ctx, saveSessionSQL,
		state.ID, state.UserID, raw, state.ManualCode, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving cart session %q: %w", state.ID, err)
	}
	return nil
}

// Delete removes a session; deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting cart session %q: %w", id, err)
	}
	return nil
}
