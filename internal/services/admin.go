package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/events"
	"github.com/verdantshop/verdant/internal/export"
	"github.com/verdantshop/verdant/internal/logging"
	"github.com/verdantshop/verdant/internal/settings"
)

const (
	defaultAdminPageSize = 50
	maxAdminPageSize     = 200
	lowStockThreshold    = 5
	lowStockLimit        = 10
	recentOrdersLimit    = 5
)

// ShipmentInput holds optional shipping fields; nil leaves a field unchanged.
type ShipmentInput struct {
	Courier          *string `json:"courier"`
	TrackingNumber   *string `json:"tracking_number"`
	PhytoCertificate *string `json:"phyto_certificate"`
}

type ListOrdersInput struct {
	Status string
	Limit  int
	Offset int
}

// ProductInput is the admin product form. NewImages are uploaded files to be
// stored and appended to Entry.Images.
type ProductInput struct {
	Entry     catalog.ProductEntry
	NewImages []io.Reader
}

type Dashboard struct {
	OrdersByStatus  map[db.OrderStatus]int   `json:"orders_by_status"`
	OrdersByPayment map[db.PaymentStatus]int `json:"orders_by_payment"`
	TotalOrders     int                      `json:"total_orders"`
	PaidRevenueUSD  string                   `json:"paid_revenue_usd"`
	LowStock        []db.Product             `json:"low_stock"`
	RecentOrders    []db.Order               `json:"recent_orders"`
}

// AdminSettings is the part of settings.Service the back office uses.
type AdminSettings interface {
	Site(ctx context.Context) (settings.Site, error)
	Update(ctx context.Context, values map[string]string) error
}

type CatalogImporter interface {
	Import(ctx context.Context, content []byte) (catalog.ImportResult, error)
}

type AdminService struct {
	orders      OrderRepository
	products    ProductRepository
	users       UserRepository
	settings    AdminSettings
	images      ImageStore
	importer    CatalogImporter
	publisher   events.Publisher
	emailSender OrderEmailSender
	emailKeys   EmailKeyValidator
	validator   *catalog.Validator
	logger      *slog.Logger
}

// EmailKeyValidator checks a mail provider API key before it is stored.
type EmailKeyValidator func(ctx context.Context, apiKey string) error

type AdminServiceDeps struct {
	Orders      OrderRepository
	Products    ProductRepository
	Users       UserRepository
	Settings    AdminSettings
	Images      ImageStore
	Importer    CatalogImporter
	Publisher   events.Publisher
	EmailSender OrderEmailSender
	EmailKeys   EmailKeyValidator
	Logger      *slog.Logger
}

func NewAdminService(deps AdminServiceDeps) *AdminService {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.EmailSender == nil {
		deps.EmailSender = noopOrderEmailSender{}
	}
	if deps.Importer == nil && deps.Products != nil {
		deps.Importer = catalog.NewImporter(deps.Products)
	}

	return &AdminService{
		orders:      deps.Orders,
		products:    deps.Products,
		users:       deps.Users,
		settings:    deps.Settings,
		images:      deps.Images,
		importer:    deps.Importer,
		publisher:   deps.Publisher,
		emailSender: deps.EmailSender,
		emailKeys:   deps.EmailKeys,
		validator:   catalog.NewValidator(),
		logger:      deps.Logger,
	}
}

func (s *AdminService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// ShipOrder moves the order to SHIPPED and records whichever shipping fields
// are given. Cancelled orders cannot be shipped; any other jump is allowed.
func (s *AdminService) ShipOrder(ctx context.Context, orderID uuid.UUID, input ShipmentInput) (*db.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.admin.ship_order",
		sentry.WithOpName("service.admin"),
		sentry.WithDescription("ShipOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("order_id", orderID)

	current, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.PaymentStatus != db.PaymentPaid {
		logger.Warn("shipping an order that is not paid", "payment_status", current.PaymentStatus, "status", current.Status)
	}

	if err := s.orders.MarkShipped(ctx, orderID, shipmentDetails(input)); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, mapOrderWriteError(err, "ship")
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	logger.Info("order shipped", "courier", order.Courier, "tracking_number", order.TrackingNumber)

	if err := s.emailSender.SendOrderShipped(ctx, order); err != nil {
		logger.Error("failed to send shipping email", "error", err)
	}
	publishOrderEvent(ctx, s.publisher, logger, events.OrderShipped, order)

	span.Status = sentry.SpanStatusOK
	return order, nil
}

// MarkPaid records a manual payment. An order that already shipped keeps its status.
func (s *AdminService) MarkPaid(ctx context.Context, orderID uuid.UUID) (*db.Order, error) {
	logger := s.loggerFromContext(ctx).With("order_id", orderID)

	if err := s.orders.MarkPaid(ctx, orderID); err != nil {
		return nil, mapOrderWriteError(err, "mark paid")
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	logger.Info("order marked paid", "status", order.Status)
	publishOrderEvent(ctx, s.publisher, logger, events.OrderPaid, order)
	return order, nil
}

func (s *AdminService) UpdateShipment(ctx context.Context, orderID uuid.UUID, input ShipmentInput) (*db.Order, error) {
	if input.Courier == nil && input.TrackingNumber == nil && input.PhytoCertificate == nil {
		return nil, UserError{Message: "Nothing to update"}
	}
	if err := s.orders.UpdateShipment(ctx, orderID, shipmentDetails(input)); err != nil {
		return nil, mapOrderWriteError(err, "update shipment")
	}
	return s.getOrder(ctx, orderID)
}

func (s *AdminService) ListOrders(ctx context.Context, input ListOrdersInput) ([]db.Order, error) {
	status := db.OrderStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
	if status != "" && !status.Valid() {
		return nil, UserError{Message: fmt.Sprintf("Unknown order status %q", input.Status)}
	}

	orders, err := s.orders.List(ctx, db.OrderListFilter{
		Status: status,
		Limit:  pageSize(input.Limit),
		Offset: max(input.Offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *AdminService) GetOrder(ctx context.Context, orderID uuid.UUID) (*db.Order, error) {
	return s.getOrder(ctx, orderID)
}

func (s *AdminService) getOrder(ctx context.Context, orderID uuid.UUID) (*db.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

func (s *AdminService) ListProducts(ctx context.Context, limit, offset int) ([]db.Product, error) {
	return s.products.ListAll(ctx, pageSize(limit), max(offset, 0))
}

func (s *AdminService) CreateProduct(ctx context.Context, input ProductInput) (*db.Product, error) {
	product, err := s.productFromInput(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		s.discardImages(ctx, product.Images, input.Entry.Images)
		return nil, mapProductWriteError(err)
	}
	s.loggerFromContext(ctx).Info("product created", "product_id", product.ID, "slug", product.Slug)
	return product, nil
}

func (s *AdminService) UpdateProduct(ctx context.Context, productID uuid.UUID, input ProductInput) (*db.Product, error) {
	existing, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	product, err := s.productFromInput(ctx, input)
	if err != nil {
		return nil, err
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt

	if err := s.products.Update(ctx, product); err != nil {
		s.discardImages(ctx, product.Images, input.Entry.Images)
		return nil, mapProductWriteError(err)
	}

	s.discardImages(ctx, existing.Images, product.Images)
	return product, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	existing, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return mapProductWriteError(err)
	}
	s.discardImages(ctx, existing.Images, nil)
	s.loggerFromContext(ctx).Info("product deleted", "product_id", productID, "slug", existing.Slug)
	return nil
}

func (s *AdminService) UpdateStock(ctx context.Context, productID uuid.UUID, stock int) error {
	if stock < 0 {
		return UserError{Message: "Stock must be zero or positive"}
	}
	if err := s.products.UpdateStock(ctx, productID, stock); err != nil {
		return mapProductWriteError(err)
	}
	return nil
}

// ImportCatalog upserts products by slug from a YAML document.
func (s *AdminService) ImportCatalog(ctx context.Context, content []byte) (catalog.ImportResult, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return catalog.ImportResult{}, UserError{Message: "Catalog file is empty"}
	}

	result, err := s.importer.Import(ctx, content)
	if err != nil {
		if result.Created+result.Updated == 0 {
			return result, UserError{Message: fmt.Sprintf("Catalog import failed: %s", err.Error())}
		}
		return result, fmt.Errorf("catalog import stopped after %d products: %w", result.Created+result.Updated, err)
	}
	s.loggerFromContext(ctx).Info("catalog imported", "created", result.Created, "updated", result.Updated)
	return result, nil
}

func (s *AdminService) Settings(ctx context.Context) (settings.Site, error) {
	return s.settings.Site(ctx)
}

func (s *AdminService) UpdateSettings(ctx context.Context, values map[string]string) (settings.Site, error) {
	if key := strings.TrimSpace(values[string(settings.KeyEmailAPIKey)]); key != "" && s.emailKeys != nil {
		if err := s.emailKeys(ctx, key); err != nil {
			s.loggerFromContext(ctx).Warn("email api key rejected", "error", err)
			return settings.Site{}, UserError{Message: "The email provider rejected this API key"}
		}
	}
	if err := s.settings.Update(ctx, values); err != nil {
		var validationErr *settings.ValidationError
		if errors.As(err, &validationErr) {
			return settings.Site{}, UserError{Message: validationErr.Error()}
		}
		return settings.Site{}, fmt.Errorf("failed to update settings: %w", err)
	}
	return s.settings.Site(ctx)
}

func (s *AdminService) ListCustomers(ctx context.Context, limit, offset int) ([]db.Customer, error) {
	return s.users.ListCustomers(ctx, pageSize(limit), max(offset, 0))
}

func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load order stats: %w", err)
	}
	lowStock, err := s.products.LowStock(ctx, lowStockThreshold, lowStockLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load low stock products: %w", err)
	}
	recent, err := s.orders.List(ctx, db.OrderListFilter{Limit: recentOrdersLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}

	return &Dashboard{
		OrdersByStatus:  stats.ByStatus,
		OrdersByPayment: stats.ByPayment,
		TotalOrders:     stats.TotalOrderCount,
		PaidRevenueUSD:  catalog.FormatCents(stats.PaidRevenueUSD),
		LowStock:        lowStock,
		RecentOrders:    recent,
	}, nil
}

func (s *AdminService) ExportOrders(ctx context.Context, w io.Writer) error {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	return export.WriteOrders(w, orders)
}

func (s *AdminService) ExportCustomers(ctx context.Context, w io.Writer) error {
	customers, err := s.users.ListCustomers(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to load customers: %w", err)
	}
	return export.WriteCustomers(w, customers)
}

func (s *AdminService) productFromInput(ctx context.Context, input ProductInput) (*db.Product, error) {
	entry := input.Entry
	if err := s.validator.ValidateEntry(&entry); err != nil {
		return nil, UserError{Message: err.Error()}
	}

	for _, image := range input.NewImages {
		if s.images == nil {
			return nil, fmt.Errorf("%w: image storage is not configured", ErrServiceUnavailable)
		}
		url, err := s.images.SaveImage(ctx, image)
		if err != nil {
			s.discardImages(ctx, entry.Images, input.Entry.Images)
			return nil, UserError{Message: fmt.Sprintf("Image rejected: %s", err.Error())}
		}
		entry.Images = append(entry.Images, url)
	}

	product, err := entry.Product()
	if err != nil {
		return nil, UserError{Message: err.Error()}
	}
	return &product, nil
}

// discardImages removes stored images in candidates that are not in keep.
func (s *AdminService) discardImages(ctx context.Context, candidates, keep []string) {
	if s.images == nil {
		return
	}
	kept := make(map[string]struct{}, len(keep))
	for _, url := range keep {
		kept[url] = struct{}{}
	}
	for _, url := range candidates {
		if _, ok := kept[url]; ok {
			continue
		}
		if err := s.images.Delete(url); err != nil {
			s.loggerFromContext(ctx).Warn("failed to delete product image", "error", err, "url", url)
		}
	}
}

func shipmentDetails(input ShipmentInput) db.ShipmentDetails {
	details := db.ShipmentDetails{
		TrackingNumber:   trimmedPtr(input.TrackingNumber),
		PhytoCertificate: trimmedPtr(input.PhytoCertificate),
	}
	if input.Courier != nil {
		courier := NormalizeCourier(*input.Courier)
		details.Courier = &courier
	}
	return details
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func mapOrderWriteError(err error, action string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, db.ErrInvalidStatusTransition):
		return fmt.Errorf("%w: cannot %s: %v", ErrInvalidStatusTransition, action, err)
	default:
		return fmt.Errorf("failed to %s order: %w", action, err)
	}
}

func mapProductWriteError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrProductNotFound
	case errors.Is(err, db.ErrDuplicateSlug):
		return UserError{Message: "A product with this slug already exists"}
	default:
		return fmt.Errorf("failed to save product: %w", err)
	}
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultAdminPageSize
	case limit > maxAdminPageSize:
		return maxAdminPageSize
	default:
		return limit
	}
}
