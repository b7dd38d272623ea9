package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/events"
	"github.com/verdantshop/verdant/internal/payment"
	"github.com/verdantshop/verdant/internal/settings"
)

// fakeOrderStore keeps orders and product stock in memory and mirrors the
// all-or-nothing behaviour of the Postgres order transaction.
type fakeOrderStore struct {
	products  map[uuid.UUID]*db.Product
	orders    map[uuid.UUID]*db.Order
	createErr error
	stats     db.OrderStats
	lastList  db.OrderListFilter
	tokens    map[uuid.UUID]string
}

func newFakeOrderStore(products ...*db.Product) *fakeOrderStore {
	store := &fakeOrderStore{
		products: make(map[uuid.UUID]*db.Product),
		orders:   make(map[uuid.UUID]*db.Order),
		tokens:   make(map[uuid.UUID]string),
	}
	for _, product := range products {
		store.products[product.ID] = product
	}
	return store
}

func (f *fakeOrderStore) CreateWithItems(_ context.Context, order *db.Order) error {
	if f.createErr != nil {
		return f.createErr
	}

	for _, item := range order.Items {
		product, ok := f.products[item.ProductID.UUID]
		if !ok {
			return fmt.Errorf("%w: %s", db.ErrProductNotFound, item.ProductID.UUID)
		}
		if product.Stock < item.Quantity {
			return &db.StockError{ProductID: product.ID, Requested: item.Quantity}
		}
	}

	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for idx := range order.Items {
		item := &order.Items[idx]
		product := f.products[item.ProductID.UUID]
		product.Stock -= item.Quantity
		item.ID = uuid.New()
		item.OrderID = order.ID
		item.ProductName = product.Name
	}

	stored := *order
	stored.Items = append([]db.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderStore) SetPaymentToken(_ context.Context, orderID uuid.UUID, provider, token string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	order.PaymentProvider = provider
	order.PaymentToken = token
	f.tokens[orderID] = token
	return nil
}

func (f *fakeOrderStore) ApplyPaymentUpdate(_ context.Context, orderID uuid.UUID, paymentStatus db.PaymentStatus, status *db.OrderStatus) error {
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	order.PaymentStatus = paymentStatus
	if status != nil {
		order.Status = *status
	}
	return nil
}

func (f *fakeOrderStore) MarkShipped(_ context.Context, orderID uuid.UUID, details db.ShipmentDetails) error {
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	if order.Status == db.StatusCancelled {
		return fmt.Errorf("%w: expected any status except CANCELLED", db.ErrInvalidStatusTransition)
	}
	order.Status = db.StatusShipped
	applyShipment(order, details)
	return nil
}

func (f *fakeOrderStore) MarkPaid(_ context.Context, orderID uuid.UUID) error {
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	order.PaymentStatus = db.PaymentPaid
	order.Status = db.StatusShippingReady
	return nil
}

func (f *fakeOrderStore) UpdateShipment(_ context.Context, orderID uuid.UUID, details db.ShipmentDetails) error {
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	applyShipment(order, details)
	return nil
}

func applyShipment(order *db.Order, details db.ShipmentDetails) {
	if details.Courier != nil {
		order.Courier = *details.Courier
	}
	if details.TrackingNumber != nil {
		order.TrackingNumber = *details.TrackingNumber
	}
	if details.PhytoCertificate != nil {
		order.PhytoCertificate = *details.PhytoCertificate
	}
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*db.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cloned := *order
	return &cloned, nil
}

func (f *fakeOrderStore) List(_ context.Context, filter db.OrderListFilter) ([]db.Order, error) {
	f.lastList = filter
	orders := make([]db.Order, 0, len(f.orders))
	for _, order := range f.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		orders = append(orders, *order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (f *fakeOrderStore) ListAll(ctx context.Context) ([]db.Order, error) {
	return f.List(ctx, db.OrderListFilter{})
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID uuid.UUID) ([]db.Order, error) {
	var orders []db.Order
	for _, order := range f.orders {
		if order.UserID.Valid && order.UserID.UUID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (f *fakeOrderStore) Stats(context.Context) (db.OrderStats, error) {
	return f.stats, nil
}

func (f *fakeOrderStore) addOrder(order db.Order) *db.Order {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	f.orders[order.ID] = &order
	return &order
}

type fakeProductStore struct {
	products   map[uuid.UUID]*db.Product
	lastFilter catalog.Filter
	lowStock   []db.Product
}

func newFakeProductStore(products ...*db.Product) *fakeProductStore {
	store := &fakeProductStore{products: make(map[uuid.UUID]*db.Product)}
	for _, product := range products {
		store.products[product.ID] = product
	}
	return store
}

func (f *fakeProductStore) Search(_ context.Context, filter catalog.Filter) ([]db.Product, error) {
	f.lastFilter = filter
	var products []db.Product
	for _, product := range f.products {
		if product.Stock > 0 {
			products = append(products, *product)
		}
	}
	return products, nil
}

func (f *fakeProductStore) GetBySlug(_ context.Context, slug string) (*db.Product, error) {
	for _, product := range f.products {
		if product.Slug == slug {
			cloned := *product
			return &cloned, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeProductStore) GetByID(_ context.Context, id uuid.UUID) (*db.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cloned := *product
	return &cloned, nil
}

func (f *fakeProductStore) ListAll(context.Context, int, int) ([]db.Product, error) {
	products := make([]db.Product, 0, len(f.products))
	for _, product := range f.products {
		products = append(products, *product)
	}
	return products, nil
}

func (f *fakeProductStore) Categories(context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var categories []string
	for _, product := range f.products {
		if _, ok := seen[product.Category]; ok {
			continue
		}
		seen[product.Category] = struct{}{}
		categories = append(categories, product.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

func (f *fakeProductStore) LowStock(context.Context, int, int) ([]db.Product, error) {
	return f.lowStock, nil
}

func (f *fakeProductStore) Create(_ context.Context, product *db.Product) error {
	for _, existing := range f.products {
		if existing.Slug == product.Slug {
			return db.ErrDuplicateSlug
		}
	}
	product.ID = uuid.New()
	cloned := *product
	f.products[product.ID] = &cloned
	return nil
}

func (f *fakeProductStore) Update(_ context.Context, product *db.Product) error {
	if _, ok := f.products[product.ID]; !ok {
		return db.ErrNotFound
	}
	cloned := *product
	f.products[product.ID] = &cloned
	return nil
}

func (f *fakeProductStore) UpsertBySlug(ctx context.Context, product *db.Product) (bool, error) {
	for id, existing := range f.products {
		if existing.Slug == product.Slug {
			product.ID = id
			return false, f.Update(ctx, product)
		}
	}
	return true, f.Create(ctx, product)
}

func (f *fakeProductStore) UpdateStock(_ context.Context, id uuid.UUID, stock int) error {
	product, ok := f.products[id]
	if !ok {
		return db.ErrNotFound
	}
	product.Stock = stock
	return nil
}

func (f *fakeProductStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

type fakeUserStore struct {
	users     map[uuid.UUID]*db.User
	customers []db.Customer
}

func newFakeUserStore(users ...*db.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[uuid.UUID]*db.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (f *fakeUserStore) Create(_ context.Context, user *db.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return db.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	cloned := *user
	f.users[user.ID] = &cloned
	return nil
}

func (f *fakeUserStore) UpsertByEmail(ctx context.Context, user *db.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			*user = *existing
			return nil
		}
	}
	return f.Create(ctx, user)
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*db.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			cloned := *user
			return &cloned, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cloned := *user
	return &cloned, nil
}

func (f *fakeUserStore) ListCustomers(context.Context, int, int) ([]db.Customer, error) {
	return f.customers, nil
}

type fakeSiteSettings struct {
	site      settings.Site
	err       error
	updated   map[string]string
	updateErr error
	public    map[string]string
}

func (f *fakeSiteSettings) Site(context.Context) (settings.Site, error) {
	return f.site, f.err
}

func (f *fakeSiteSettings) Update(_ context.Context, values map[string]string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = values
	return nil
}

func (f *fakeSiteSettings) Public(context.Context) (map[string]string, error) {
	return f.public, nil
}

type recordingPublisher struct {
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	types := make([]events.Type, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type recordingEmailSender struct {
	received []uuid.UUID
	shipped  []uuid.UUID
}

func (s *recordingEmailSender) SendOrderReceived(_ context.Context, order *db.Order) error {
	s.received = append(s.received, order.ID)
	return nil
}

func (s *recordingEmailSender) SendOrderShipped(_ context.Context, order *db.Order) error {
	s.shipped = append(s.shipped, order.ID)
	return nil
}

type fakePaymentProvider struct {
	token    *payment.Token
	err      error
	requests []payment.TokenRequest
}

func (p *fakePaymentProvider) Name() string {
	return "fake"
}

func (p *fakePaymentProvider) CreateToken(_ context.Context, req payment.TokenRequest) (*payment.Token, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return p.token, nil
}

type fakeImageStore struct {
	saved   []string
	deleted []string
	err     error
}

func (s *fakeImageStore) SaveImage(_ context.Context, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	url := fmt.Sprintf("/uploads/%s.png", uuid.NewString())
	s.saved = append(s.saved, url)
	return url, nil
}

func (s *fakeImageStore) Delete(url string) error {
	s.deleted = append(s.deleted, url)
	return nil
}

func testProduct(name string, priceCents int64, stock int) *db.Product {
	return &db.Product{
		ID:         uuid.New(),
		Slug:       catalogSlug(name),
		Name:       name,
		Category:   "Aroid",
		PriceCents: priceCents,
		Stock:      stock,
	}
}

func catalogSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
