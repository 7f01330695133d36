package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrOrderNumberTaken  = errors.New("order number already taken")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrDuplicateItem     = errors.New("item already in order")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSequenceExhausted = errors.New("daily order sequence exhausted")
	ErrNoItems           = errors.New("order has no items")
)

// IsRetryable reports whether a whole transaction may be re-run after err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOrderNumberTaken) || errors.Is(err, ErrConflict)
}

// Tx is the set of writes and reads available inside one ledger transaction.
type Tx interface {
	NumberSource
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID int64, items []OrderItem) error
	Items(ctx context.Context, orderID int64) ([]OrderItem, error)
	SaveTotals(ctx context.Context, o *Order) error
	// LockByNumber loads the order and holds it until the transaction ends.
	LockByNumber(ctx context.Context, number string) (*Order, error)
	SetStatus(ctx context.Context, id int64, s Status, at time.Time) error
	SetPaymentStatus(ctx context.Context, id int64, p PaymentStatus, at time.Time) error
}

type Store interface {
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
}

type PGStore struct{ db *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{db: db} }

var _ Store = (*PGStore)(nil)

func (s *PGStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapPGError(err)
	}
	return mapPGError(tx.Commit(ctx))
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "orders_order_number_key":
			return fmt.Errorf("%w: %s", ErrOrderNumberTaken, pgErr.Detail)
		case "order_items_order_id_item_id_key":
			return ErrDuplicateItem
		}
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}

const orderColumns = `id, order_number, user_id::text, customer_name, customer_email, customer_phone,
	delivery_address, special_instructions, status, payment_status,
	original_total::text, discount_amount::text, final_total::text, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                         Order
		original, discount, final string
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.DeliveryAddress, &o.SpecialInstructions, &o.Status, &o.PaymentStatus,
		&original, &discount, &final, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var err error
	if o.OriginalTotal, err = decimal.NewFromString(original); err != nil {
		return nil, err
	}
	if o.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, err
	}
	if o.FinalTotal, err = decimal.NewFromString(final); err != nil {
		return nil, err
	}
	return &o, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, item_id, item_name, quantity, original_price::text, final_price::text, offer_id
		FROM order_items WHERE order_id=$1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var (
			it              OrderItem
			original, final string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.ItemName, &it.Quantity, &original, &final, &it.OfferID); err != nil {
			return nil, err
		}
		if it.OriginalPrice, err = decimal.NewFromString(original); err != nil {
			return nil, err
		}
		if it.FinalPrice, err = decimal.NewFromString(final); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, s.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) GetByNumber(ctx context.Context, number string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, number))
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, s.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = normalizeLimit(limit, offset)
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
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

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LastNumber(ctx context.Context, prefix string) (string, error) {
	var n string
	err := t.tx.QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE order_number LIKE $1 || '%'
		ORDER BY order_number DESC LIMIT 1
	`, prefix).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return n, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, customer_name, customer_email, customer_phone,
			delivery_address, special_instructions, status, payment_status,
			original_total, discount_amount, final_total, created_at, updated_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id
	`, o.OrderNumber, o.UserID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.DeliveryAddress, o.SpecialInstructions, o.Status, o.PaymentStatus,
		o.OriginalTotal, o.DiscountAmount, o.FinalTotal, o.CreatedAt).Scan(&o.ID)
}

func (t *pgTx) InsertItems(ctx context.Context, orderID int64, items []OrderItem) error {
	for i := range items {
		it := &items[i]
		it.OrderID = orderID
		if err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, item_id, item_name, quantity, original_price, final_price, offer_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, orderID, it.ItemID, it.ItemName, it.Quantity, it.OriginalPrice, it.FinalPrice, it.OfferID).Scan(&it.ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) Items(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return loadItems(ctx, t.tx, orderID)
}

func (t *pgTx) SaveTotals(ctx context.Context, o *Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET original_total=$2, discount_amount=$3, final_total=$4, updated_at=$5
		WHERE id=$1
	`, o.ID, o.OriginalTotal, o.DiscountAmount, o.FinalTotal, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) LockByNumber(ctx context.Context, number string) (*Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1 FOR UPDATE`, number))
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, t.tx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *pgTx) SetStatus(ctx context.Context, id int64, s Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, s, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetPaymentStatus(ctx context.Context, id int64, p PaymentStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET payment_status=$2, updated_at=$3 WHERE id=$1`, id, p, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
