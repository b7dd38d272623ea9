package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrProductNotFound         = errors.New("product not found")
)

const orderColumns = `id, user_id, customer_name, customer_email, customer_phone, shipping_address, country, notes,
	total_usd_cents, local_total::text, local_currency, status, payment_status, payment_provider, payment_token,
	courier, tracking_number, phyto_certificate, created_at, updated_at`

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// StockError identifies the product that could not cover the requested quantity.
type StockError struct {
	ProductID uuid.UUID
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// CreateWithItems inserts the order and its items and decrements stock in one
// transaction. Each decrement is conditional on enough stock remaining, so two
// concurrent orders cannot drive a product below zero. Item names are
// snapshotted from the product row; unit prices are taken from the items as given.
func (s *OrderStore) CreateWithItems(ctx context.Context, order *Order) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("order has no items")
	}

	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (
				user_id, customer_name, customer_email, customer_phone, shipping_address, country, notes,
				total_usd_cents, local_total, local_currency, status, payment_status
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text::numeric, $10, $11, $12)
			RETURNING id, created_at, updated_at
		`,
			order.UserID,
			order.CustomerName,
			order.CustomerEmail,
			order.CustomerPhone,
			order.ShippingAddress,
			order.Country,
			order.Notes,
			order.TotalUSDCents,
			nullDecimalText(order.LocalTotal),
			order.LocalCurrency,
			string(order.Status),
			string(order.PaymentStatus),
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range order.Items {
			if err := insertOrderItem(ctx, tx, order.ID, &order.Items[i], i); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertOrderItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, item *OrderItem, index int) error {
	if !item.ProductID.Valid {
		return fmt.Errorf("order item %d has no product", index)
	}

	quantity, err := intToInt32(item.Quantity, "quantity")
	if err != nil {
		return err
	}

	var productName string
	err = tx.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING name
	`, quantity, item.ProductID.UUID).Scan(&productName)
	if errors.Is(err, pgx.ErrNoRows) {
		return stockFailure(ctx, tx, item.ProductID.UUID, item.Quantity)
	}
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if item.ProductName == "" {
		item.ProductName = productName
	}

	item.OrderID = orderID
	err = tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, orderID, item.ProductID, item.ProductName, quantity, item.UnitPriceCents).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

func stockFailure(ctx context.Context, tx pgx.Tx, productID uuid.UUID, requested int) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return &StockError{ProductID: productID, Requested: requested}
}

// SetPaymentToken records the provider and token minted after the order was committed.
func (s *OrderStore) SetPaymentToken(ctx context.Context, orderID uuid.UUID, provider, token string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_provider = $1, payment_token = $2, updated_at = NOW()
		WHERE id = $3
	`, provider, token, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPaymentUpdate overwrites the payment status and, when status is non-nil,
// the fulfillment status. Replaying the same update is harmless.
func (s *OrderStore) ApplyPaymentUpdate(ctx context.Context, orderID uuid.UUID, paymentStatus PaymentStatus, status *OrderStatus) error {
	var statusArg *string
	if status != nil {
		value := string(*status)
		statusArg = &value
	}

	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1, status = COALESCE($2, status), updated_at = NOW()
		WHERE id = $3
	`, string(paymentStatus), statusArg, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ShipmentDetails holds optional shipping fields; nil leaves the stored value unchanged.
type ShipmentDetails struct {
	Courier          *string
	TrackingNumber   *string
	PhytoCertificate *string
}

func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID, details ShipmentDetails) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1,
			courier = COALESCE($2, courier),
			tracking_number = COALESCE($3, tracking_number),
			phyto_certificate = COALESCE($4, phyto_certificate),
			updated_at = NOW()
		WHERE id = $5 AND status <> 'CANCELLED'
	`, string(StatusShipped), details.Courier, details.TrackingNumber, details.PhytoCertificate, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, orderID, "expected any status except CANCELLED")
	}
	return nil
}

// MarkPaid sets the payment status to PAID and forces the order to
// SHIPPING_READY, whatever its current stage.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1,
			status = $2,
			updated_at = NOW()
		WHERE id = $3
	`, string(PaymentPaid), string(StatusShippingReady), orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *OrderStore) UpdateShipment(ctx context.Context, orderID uuid.UUID, details ShipmentDetails) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET courier = COALESCE($1, courier),
			tracking_number = COALESCE($2, tracking_number),
			phyto_certificate = COALESCE($3, phyto_certificate),
			updated_at = NOW()
		WHERE id = $4
	`, details.Courier, details.TrackingNumber, details.PhytoCertificate, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *OrderStore) transitionFailure(ctx context.Context, orderID uuid.UUID, expectation string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s", ErrInvalidStatusTransition, expectation)
}

// GetByID loads the order with its items.
func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.itemsForOrders(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return &order, nil
}

type OrderListFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

// List returns orders newest first with their items.
func (s *OrderStore) List(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return s.collectOrdersWithItems(ctx, rows)
}

// ListAll returns every order oldest first, for exports.
func (s *OrderStore) ListAll(ctx context.Context) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	return s.collectOrdersWithItems(ctx, rows)
}

func (s *OrderStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return s.collectOrdersWithItems(ctx, rows)
}

type OrderStats struct {
	ByStatus        map[OrderStatus]int
	ByPayment       map[PaymentStatus]int
	PaidRevenueUSD  int64
	TotalOrderCount int
}

func (s *OrderStore) Stats(ctx context.Context) (OrderStats, error) {
	stats := OrderStats{
		ByStatus:  make(map[OrderStatus]int),
		ByPayment: make(map[PaymentStatus]int),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT status, payment_status, COUNT(*), COALESCE(SUM(total_usd_cents), 0)
		FROM orders
		GROUP BY status, payment_status
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status        string
			paymentStatus string
			count         int
			sumCents      int64
		)
		if err := rows.Scan(&status, &paymentStatus, &count, &sumCents); err != nil {
			return stats, err
		}
		stats.ByStatus[OrderStatus(status)] += count
		stats.ByPayment[PaymentStatus(paymentStatus)] += count
		stats.TotalOrderCount += count
		if PaymentStatus(paymentStatus) == PaymentPaid {
			stats.PaidRevenueUSD += sumCents
		}
	}
	return stats, rows.Err()
}

func (s *OrderStore) collectOrdersWithItems(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := s.itemsForOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *OrderStore) itemsForOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY product_name, id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]OrderItem, len(orderIDs))
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		order         Order
		localTotal    *string
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.CustomerPhone,
		&order.ShippingAddress,
		&order.Country,
		&order.Notes,
		&order.TotalUSDCents,
		&localTotal,
		&order.LocalCurrency,
		&status,
		&paymentStatus,
		&order.PaymentProvider,
		&order.PaymentToken,
		&order.Courier,
		&order.TrackingNumber,
		&order.PhytoCertificate,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}

	order.Status = OrderStatus(status)
	order.PaymentStatus = PaymentStatus(paymentStatus)
	if localTotal != nil {
		amount, parseErr := decimal.NewFromString(*localTotal)
		if parseErr != nil {
			return Order{}, fmt.Errorf("invalid local total for order %s: %w", order.ID, parseErr)
		}
		order.LocalTotal = decimal.NewNullDecimal(amount)
	}
	return order, nil
}

func nullDecimalText(value decimal.NullDecimal) *string {
	if !value.Valid {
		return nil
	}
	text := value.Decimal.String()
	return &text
}
