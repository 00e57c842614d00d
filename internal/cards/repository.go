package cards

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the display cache has no entry.
var ErrNotFound = errors.New("display entry not found")

// Repository caches card display data: PAN expiry by suffix and issuer art by card.
type Repository interface {
	SavePanExpiry(ctx context.Context, panSuffix, expiry string) error
	PanExpiry(ctx context.Context, panSuffix string) (string, error)
	SaveCardArt(ctx context.Context, digitalCardID string, art []byte) error
	CardArt(ctx context.Context, digitalCardID string) ([]byte, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS card_pan_expiry (
    pan_suffix TEXT PRIMARY KEY,
    expiry     TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS card_art (
    digital_card_id TEXT PRIMARY KEY,
    image           BYTEA NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);`

// PostgresRepository stores display data in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the display tables when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// SavePanExpiry upserts the expiry for a PAN suffix.
func (r *PostgresRepository) SavePanExpiry(ctx context.Context, panSuffix, expiry string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO card_pan_expiry (pan_suffix, expiry, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (pan_suffix) DO UPDATE SET expiry = EXCLUDED.expiry, updated_at = EXCLUDED.updated_at`,
		panSuffix, expiry, time.Now().UTC())
	return err
}

// PanExpiry returns the cached expiry for a PAN suffix.
func (r *PostgresRepository) PanExpiry(ctx context.Context, panSuffix string) (string, error) {
	var expiry string
	err := r.db.QueryRow(ctx, `SELECT expiry FROM card_pan_expiry WHERE pan_suffix = $1`, panSuffix).Scan(&expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return expiry, err
}

// SaveCardArt upserts the background image of a card.
func (r *PostgresRepository) SaveCardArt(ctx context.Context, digitalCardID string, art []byte) error {
	_, err := r.db.Exec(ctx, `INSERT INTO card_art (digital_card_id, image, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (digital_card_id) DO UPDATE SET image = EXCLUDED.image, updated_at = EXCLUDED.updated_at`,
		digitalCardID, art, time.Now().UTC())
	return err
}

// CardArt returns the cached background image of a card.
func (r *PostgresRepository) CardArt(ctx context.Context, digitalCardID string) ([]byte, error) {
	var art []byte
	err := r.db.QueryRow(ctx, `SELECT image FROM card_art WHERE digital_card_id = $1`, digitalCardID).Scan(&art)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return art, err
}
