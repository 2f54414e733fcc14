package repository

import (
	"context"
	"errors"

	"github.com/iyhunko/product-catalog/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the requested product ID.
	ErrNotFound = errors.New("product not found")
)

// ProductRepository defines the persistence operations for products.
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) (*model.Product, error)
	DeleteByID(ctx context.Context, id int64) (*model.Product, error)
	// WithinTransaction runs fn with a repository bound to a single transaction.
	// The transaction is committed when fn returns nil and rolled back otherwise.
	WithinTransaction(ctx context.Context, fn func(repo ProductRepository) error) error
	// FindByIDForUpdate is FindByID with a row lock; it only locks inside WithinTransaction.
	FindByIDForUpdate(ctx context.Context, id int64) (*model.Product, error)
}
