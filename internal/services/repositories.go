package services

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/settings"
)

// The interfaces below are satisfied by the Postgres stores in internal/db.

type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *db.Order) error
	SetPaymentToken(ctx context.Context, orderID uuid.UUID, provider, token string) error
	ApplyPaymentUpdate(ctx context.Context, orderID uuid.UUID, paymentStatus db.PaymentStatus, status *db.OrderStatus) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, details db.ShipmentDetails) error
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	UpdateShipment(ctx context.Context, orderID uuid.UUID, details db.ShipmentDetails) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	List(ctx context.Context, filter db.OrderListFilter) ([]db.Order, error)
	ListAll(ctx context.Context) ([]db.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]db.Order, error)
	Stats(ctx context.Context) (db.OrderStats, error)
}

type ProductRepository interface {
	Search(ctx context.Context, filter catalog.Filter) ([]db.Product, error)
	GetBySlug(ctx context.Context, slug string) (*db.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.Product, error)
	ListAll(ctx context.Context, limit, offset int) ([]db.Product, error)
	Categories(ctx context.Context) ([]string, error)
	LowStock(ctx context.Context, threshold, limit int) ([]db.Product, error)
	Create(ctx context.Context, product *db.Product) error
	Update(ctx context.Context, product *db.Product) error
	UpsertBySlug(ctx context.Context, product *db.Product) (bool, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, user *db.User) error
	UpsertByEmail(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]db.Customer, error)
}

type WishlistRepository interface {
	Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]db.WishlistItem, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *db.Review) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]db.Review, error)
}

// SiteSettings is the part of settings.Service the services read from.
type SiteSettings interface {
	Site(ctx context.Context) (settings.Site, error)
}

// ImageStore keeps uploaded product images.
type ImageStore interface {
	SaveImage(ctx context.Context, r io.Reader) (string, error)
	Delete(url string) error
}
