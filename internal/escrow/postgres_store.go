package escrow

import (
	"context"
	"database/sql"
	"time"
)

// PostgresPendingStore persists reservations in PostgreSQL. Tokens are stored
// bit-cast to BIGINT.
type PostgresPendingStore struct {
	db *sql.DB
}

// NewPostgresPendingStore creates a new PostgreSQL-backed pending store.
func NewPostgresPendingStore(db *sql.DB) *PostgresPendingStore {
	return &PostgresPendingStore{db: db}
}

const reservationColumns = `token, product_id, price, seller, buyer, status, expires_at, created_at`

func (p *PostgresPendingStore) Insert(ctx context.Context, r *Reservation) error {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO reservations (token, product_id, price, seller, buyer, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token) DO NOTHING`,
		int64(r.Token), r.ProductID, int64(r.Price), r.Seller, r.Buyer,
		string(r.Status), r.ExpiresAt, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTokenCollision
	}
	return nil
}

func (p *PostgresPendingStore) Get(ctx context.Context, token uint64) (*Reservation, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE token = $1`, int64(token))

	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return r, err
}

// Remove deletes and returns in one statement; DELETE ... RETURNING is the
// store-level atomicity the completion/expiry race is resolved on.
func (p *PostgresPendingStore) Remove(ctx context.Context, token uint64) (*Reservation, error) {
	row := p.db.QueryRowContext(ctx, `
		DELETE FROM reservations WHERE token = $1
		RETURNING `+reservationColumns, int64(token))

	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresPendingStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Reservation, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (p *PostgresPendingStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&n)
	return n, err
}

func scanReservation(s scanner) (*Reservation, error) {
	r := &Reservation{}
	var (
		token  int64
		price  int64
		status string
	)

	err := s.Scan(&token, &r.ProductID, &price, &r.Seller, &r.Buyer,
		&status, &r.ExpiresAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Token = uint64(token)
	r.Price = uint64(price)
	r.Status = Status(status)
	return r, nil
}

// Compile-time assertion that PostgresPendingStore implements PendingStore.
var _ PendingStore = (*PostgresPendingStore)(nil)

// PostgresOrderStore persists completed orders in PostgreSQL.
type PostgresOrderStore struct {
	db *sql.DB
}

// NewPostgresOrderStore creates a new PostgreSQL-backed order store.
func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

const orderColumns = `id, product_id, price, seller, buyer, status, settled_block, token, created_at`

func (p *PostgresOrderStore) Insert(ctx context.Context, o *Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders (id, product_id, price, seller, buyer, status, settled_block, token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.ProductID, int64(o.Price), o.Seller, o.Buyer,
		string(o.Status), int64(o.SettledBlock), int64(o.Token), o.CreatedAt,
	)
	return err
}

func (p *PostgresOrderStore) Get(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

func (p *PostgresOrderStore) ListByBuyer(ctx context.Context, buyer string, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE buyer = $1
		ORDER BY created_at DESC
		LIMIT $2`, buyer, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(s scanner) (*Order, error) {
	o := &Order{}
	var (
		price        int64
		status       string
		settledBlock int64
		token        int64
	)

	err := s.Scan(&o.ID, &o.ProductID, &price, &o.Seller, &o.Buyer,
		&status, &settledBlock, &token, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.Price = uint64(price)
	o.Status = Status(status)
	o.SettledBlock = uint64(settledBlock)
	o.Token = uint64(token)
	return o, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// Compile-time assertion that PostgresOrderStore implements OrderStore.
var _ OrderStore = (*PostgresOrderStore)(nil)
