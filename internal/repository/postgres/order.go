package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/repository"
	"github.com/siyana/storefront/pkg/database"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

const (
	uniqueViolation          = "23505"
	idempotencyKeyConstraint = "orders_user_idempotency_key"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const insertOrder = `
	INSERT INTO orders (order_id, user_id, user_email, user_name, items, subtotal, shipping, tax,
		total_amount, status, idempotency_key, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12, $13)`

// Create inserts the order in a single statement; the primary key rejects a
// colliding order ID.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "orders.create", "INSERT INTO orders")
	defer func() { end(err) }()

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}

	_, err = r.pool.Exec(ctx, insertOrder,
		o.OrderID,
		o.UserID,
		o.UserEmail,
		o.UserName,
		itemsJSON,
		o.Subtotal.String(),
		o.Shipping.String(),
		o.Tax.String(),
		o.TotalAmount.String(),
		string(o.Status),
		key,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == idempotencyKeyConstraint {
				return apperrors.Conflict("an order was already placed with this idempotency key")
			}
			return apperrors.AlreadyExists("order", "id", o.OrderID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const selectOrder = `
	SELECT order_id, user_id, user_email, user_name, items,
		subtotal::text, shipping::text, tax::text, total_amount::text,
		status, COALESCE(idempotency_key, ''), created_at, updated_at
	FROM orders`

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "orders.get", "SELECT FROM orders WHERE order_id")
	defer func() { end(err) }()

	o, err = scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetByIdempotencyKey finds the order a user already placed with key.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "orders.get_by_key", "SELECT FROM orders WHERE user_id AND idempotency_key")
	defer func() { end(err) }()

	o, err = scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE user_id = $1 AND idempotency_key = $2`, userID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order with idempotency key", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get order by idempotency key: %w", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                              domain.Order
		itemsJSON                      []byte
		subtotal, shipping, tax, total string
		status                         string
	)
	err := row.Scan(
		&o.OrderID, &o.UserID, &o.UserEmail, &o.UserName, &itemsJSON,
		&subtotal, &shipping, &tax, &total,
		&status, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}

	amounts := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{subtotal, &o.Subtotal},
		{shipping, &o.Shipping},
		{tax, &o.Tax},
		{total, &o.TotalAmount},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.raw)
		if err != nil {
			return nil, fmt.Errorf("parse order amount %q: %w", a.raw, err)
		}
		*a.dst = d
	}

	o.Status = domain.OrderStatus(status)
	return &o, nil
}
