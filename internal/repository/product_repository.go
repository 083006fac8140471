package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"storegate/internal/model"
)

// ProductRepo backs the thin catalog read surface.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

// ListActive returns visible products ordered by name.
func (r *ProductRepo) ListActive(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, sku, price_cents, category_id, is_active, created_at, updated_at
		   FROM products WHERE is_active=1 AND is_deleted=0
		 ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var (
			p        model.Product
			id       string
			category sql.NullString
		)
		if err := rows.Scan(&id, &p.Name, &p.Sku, &p.PriceCents, &category,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if category.Valid {
			if cid, err := uuid.Parse(category.String); err == nil {
				p.CategoryID = &cid
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID fetches one visible product.
func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var (
		p        model.Product
		raw      string
		category sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, sku, price_cents, category_id, is_active, created_at, updated_at
		   FROM products WHERE id=? AND is_deleted=0 LIMIT 1`, id.String()).
		Scan(&raw, &p.Name, &p.Sku, &p.PriceCents, &category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(raw); err != nil {
		return nil, err
	}
	if category.Valid {
		if cid, err := uuid.Parse(category.String); err == nil {
			p.CategoryID = &cid
		}
	}
	return &p, nil
}
