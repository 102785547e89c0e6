package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"go.uber.org/zap"

	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/migrations"
	"github.com/DrGermanius/orderingest/internal/model"
)

const (
	orderFields  = "id, order_id, customer_id, product_id, quantity, price_per_unit, order_date, status, total_amount, created_at"
	insertFields = "order_id, customer_id, product_id, quantity, price_per_unit, order_date, status, total_amount, created_at"
	insertArity  = 9

	// keeps rows*insertArity under the 65535 bind parameter limit
	maxRowsPerInsert = 5000

	connectTimeout = 10 * time.Second
)

//go:generate mockgen -destination=mock/mock_internal.go -package=mock_internal github.com/DrGermanius/orderingest/internal IRepository,IService,Ingester

type IRepository interface {
	BulkInsert(context.Context, []model.Order) (int, error)
	GetOrderByOrderID(context.Context, string) (model.Order, error)
	ListOrders(context.Context, model.OrderFilter) ([]model.Order, error)
	Ping(context.Context) error
}

type Repository struct {
	Conn   *sql.DB
	Logger *zap.SugaredLogger
}

func NewRepository(connString string, logger *zap.SugaredLogger) (*Repository, error) {
	conn, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err = migrations.Up(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{Conn: conn, Logger: logger}, nil
}

func (r Repository) Close() error {
	return r.Conn.Close()
}

// BulkInsert writes every order in one transaction. Any failure rolls the whole batch back
// and is returned as *ingest.StoreError.
func (r Repository) BulkInsert(ctx context.Context, orders []model.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	tx, err := r.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	defer tx.Rollback() // no-op after commit

	inserted := 0
	for start := 0; start < len(orders); start += maxRowsPerInsert {
		end := start + maxRowsPerInsert
		if end > len(orders) {
			end = len(orders)
		}

		query, args := buildInsert(orders[start:end])
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			r.Logger.Errorf("bulk insert of %d orders failed: %s", len(orders), err.Error())
			return 0, classifyStoreError(err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, classifyStoreError(err)
		}
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, classifyStoreError(err)
	}
	return inserted, nil
}

func buildInsert(orders []model.Order) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(orders)*insertArity)

	sb.WriteString("INSERT INTO orders (" + insertFields + ") VALUES ")
	for i, o := range orders {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 0; j < insertArity; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*insertArity+j+1)
		}
		sb.WriteByte(')')

		args = append(args,
			o.OrderID, o.CustomerID, o.ProductID, o.Quantity, o.PricePerUnit,
			o.OrderDate, o.Status, o.TotalAmount, o.CreatedAt,
		)
	}
	return sb.String(), args
}

func classifyStoreError(err error) *ingest.StoreError {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		return ingest.NewStoreError(ingest.ConstraintViolation, err)
	case errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err):
		return ingest.NewStoreError(ingest.StoreTimeout, err)
	default:
		return ingest.NewStoreError(ingest.StoreOther, err)
	}
}

func (r Repository) GetOrderByOrderID(ctx context.Context, orderID string) (model.Order, error) {
	row := r.Conn.QueryRowContext(ctx, "SELECT "+orderFields+" FROM orders WHERE order_id = $1", orderID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNoRecords
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r Repository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + orderFields + " FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit, f.Skip)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func (r Repository) Ping(ctx context.Context) error {
	return r.Conn.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (model.Order, error) {
	var o model.Order
	err := s.Scan(&o.ID, &o.OrderID, &o.CustomerID, &o.ProductID, &o.Quantity,
		&o.PricePerUnit, &o.OrderDate, &o.Status, &o.TotalAmount, &o.CreatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.OrderDate = o.OrderDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}
