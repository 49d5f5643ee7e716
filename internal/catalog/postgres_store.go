package catalog

import (
	"context"
	"database/sql"
)

// PostgresStore persists products in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed product store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `id, name, description, price, sold_count, seller, created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Product, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	prod, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	return prod, err
}

func (p *PostgresStore) Insert(ctx context.Context, prod *Product) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, sold_count, seller, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		prod.ID, prod.Name, nullString(prod.Description), int64(prod.Price),
		int64(prod.SoldCount), prod.Seller, prod.CreatedAt, prod.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Update(ctx context.Context, prod *Product) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE products SET name = $1, description = $2, price = $3, updated_at = $4
		WHERE id = $5`,
		prod.Name, nullString(prod.Description), int64(prod.Price), prod.UpdatedAt, prod.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (p *PostgresStore) Remove(ctx context.Context, id string) (*Product, error) {
	row := p.db.QueryRowContext(ctx, `
		DELETE FROM products WHERE id = $1
		RETURNING `+productColumns, id)

	prod, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	return prod, err
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]*Product, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Product
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, prod)
	}
	return result, rows.Err()
}

// IncrementSold bumps sold_count in SQL so concurrent completions cannot
// lose updates.
func (p *PostgresStore) IncrementSold(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE products SET sold_count = sold_count + 1, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (*Product, error) {
	prod := &Product{}
	var (
		description sql.NullString
		price       int64
		soldCount   int64
	)

	err := s.Scan(
		&prod.ID, &prod.Name, &description, &price, &soldCount,
		&prod.Seller, &prod.CreatedAt, &prod.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	prod.Description = description.String
	prod.Price = uint64(price)
	prod.SoldCount = uint64(soldCount)
	return prod, nil
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
