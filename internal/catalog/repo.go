// Package catalog provides the menu data (categories, items, offers), its repository
// interface and the PostgreSQL implementation.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicateName    = errors.New("category name already exists")
	ErrDuplicateSlug    = errors.New("category slug already exists")
	ErrInvalidItem      = errors.New("invalid item")
	ErrInvalidOffer     = errors.New("invalid offer")
)

type Query struct {
	Q          string
	CategoryID int64
	Limit      int
	Offset     int
}

// Reader is the read side the pricing path needs.
type Reader interface {
	GetItem(ctx context.Context, id int64) (*Item, error)
	OffersForItem(ctx context.Context, it *Item) ([]Offer, error)
}

type Repository interface {
	Reader
	ListItems(ctx context.Context, q Query) ([]Item, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*Category, error)
	ListOffers(ctx context.Context) ([]Offer, error)

	CreateCategory(ctx context.Context, c *Category) error
	CreateItem(ctx context.Context, it *Item) error
	UpdateItemPrice(ctx context.Context, id int64, price decimal.Decimal) error
	DeleteItem(ctx context.Context, id int64) (bool, error)
	CreateOffer(ctx context.Context, o *Offer) error
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

var _ Repository = (*PGRepo)(nil)

const itemColumns = `id, name, description, price::text, category_id, COALESCE(image_url, ''), created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var (
		it    Item
		price string
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Description, &price, &it.CategoryID, &it.ImageURL, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	it.Price = p
	return &it, nil
}

func (r *PGRepo) GetItem(ctx context.Context, id int64) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return it, err
}

func (r *PGRepo) ListItems(ctx context.Context, q Query) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset := normalizeLimit(q.Limit, q.Offset)
	search := strings.TrimSpace(q.Q)

	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND ($2 = 0 OR category_id = $2)
		ORDER BY id
		LIMIT $3 OFFSET $4
	`, search, q.CategoryID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListCategories(ctx context.Context) ([]Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c Category
	err := r.db.QueryRow(ctx, `SELECT id, name, slug FROM categories WHERE slug=$1`, slug).Scan(&c.ID, &c.Name, &c.Slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const offerQuery = `
	SELECT o.id, o.title, o.description, o.discount_percent::text, o.start_date, o.end_date, o.is_active,
	       COALESCE(o.image_url, ''),
	       ARRAY(SELECT item_id FROM offer_items WHERE offer_id = o.id ORDER BY item_id),
	       ARRAY(SELECT category_id FROM offer_categories WHERE offer_id = o.id ORDER BY category_id)
	FROM offers o`

func scanOffers(rows pgx.Rows) ([]Offer, error) {
	defer rows.Close()
	out := []Offer{}
	for rows.Next() {
		var (
			o   Offer
			pct string
		)
		if err := rows.Scan(&o.ID, &o.Title, &o.Description, &pct, &o.StartDate, &o.EndDate, &o.IsActive,
			&o.ImageURL, &o.ItemIDs, &o.CategoryIDs); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(pct)
		if err != nil {
			return nil, err
		}
		o.DiscountPercent = d
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) OffersForItem(ctx context.Context, it *Item) ([]Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, offerQuery+`
		WHERE o.id IN (
			SELECT offer_id FROM offer_items WHERE item_id = $1
			UNION
			SELECT offer_id FROM offer_categories WHERE category_id = $2
		)
		ORDER BY o.id
	`, it.ID, it.CategoryID)
	if err != nil {
		return nil, err
	}
	return scanOffers(rows)
}

func (r *PGRepo) ListOffers(ctx context.Context) ([]Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, offerQuery+` ORDER BY o.id`)
	if err != nil {
		return nil, err
	}
	return scanOffers(rows)
}

func (r *PGRepo) slugTaken(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE slug=$1)`, slug).Scan(&exists)
	return exists, err
}

func (r *PGRepo) CreateCategory(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if c.Slug == "" {
		slug, err := UniqueSlug(Slugify(c.Name), func(s string) (bool, error) { return r.slugTaken(ctx, s) })
		if err != nil {
			return err
		}
		c.Slug = slug
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id
	`, c.Name, c.Slug).Scan(&c.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "categories_name_key":
			return ErrDuplicateName
		case "categories_slug_key":
			return ErrDuplicateSlug
		}
	}
	return err
}

func (r *PGRepo) CreateItem(ctx context.Context, it *Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO items (name, description, price, category_id, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, it.Name, it.Description, it.Price, it.CategoryID, it.ImageURL).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrCategoryNotFound
	}
	return err
}

func (r *PGRepo) UpdateItemPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidItem
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE items SET price=$2, updated_at=NOW() WHERE id=$1`, id, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PGRepo) DeleteItem(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGRepo) CreateOffer(ctx context.Context, o *Offer) error {
	if err := o.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
		INSERT INTO offers (title, description, discount_percent, start_date, end_date, is_active, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id
	`, o.Title, o.Description, o.DiscountPercent, o.StartDate, o.EndDate, o.IsActive, o.ImageURL).Scan(&o.ID); err != nil {
		return err
	}
	for _, id := range o.ItemIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO offer_items (offer_id, item_id) VALUES ($1, $2)`, o.ID, id); err != nil {
			return err
		}
	}
	for _, id := range o.CategoryIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO offer_categories (offer_id, category_id) VALUES ($1, $2)`, o.ID, id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
