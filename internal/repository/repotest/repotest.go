// Package repotest provides an in-memory repository.ProductRepository for tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iyhunko/product-catalog/internal/model"
	"github.com/iyhunko/product-catalog/internal/repository"
)

// ProductRepository stores products in a map. Setting Err makes every call fail with it.
type ProductRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Product
	clock  time.Time

	Err error
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		nextID: 1,
		rows:   make(map[int64]model.Product),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *ProductRepository) Create(_ context.Context, product *model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	// each insert gets a strictly later created_at
	r.clock = r.clock.Add(time.Millisecond)
	row := *product
	row.ID = r.nextID
	row.CreatedAt = r.clock
	r.nextID++
	r.rows[row.ID] = row

	return &row, nil
}

func (r *ProductRepository) List(_ context.Context) ([]*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	products := make([]*model.Product, 0, len(r.rows))
	for _, row := range r.rows {
		p := row
		products = append(products, &p)
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		}
		return products[i].ID > products[j].ID
	})
	return products, nil
}

func (r *ProductRepository) FindByID(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id)
}

func (r *ProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *ProductRepository) find(id int64) (*model.Product, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", repository.ErrNotFound, id)
	}
	return &row, nil
}

func (r *ProductRepository) Update(_ context.Context, product *model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.find(product.ID)
	if err != nil {
		return nil, err
	}
	row := *product
	row.CreatedAt = existing.CreatedAt
	r.rows[row.ID] = row
	return &row, nil
}

func (r *ProductRepository) DeleteByID(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.find(id)
	if err != nil {
		return nil, err
	}
	delete(r.rows, id)
	return existing, nil
}

// WithinTransaction runs fn directly; the map has no rollback.
func (r *ProductRepository) WithinTransaction(_ context.Context, fn func(repo repository.ProductRepository) error) error {
	return fn(r)
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
