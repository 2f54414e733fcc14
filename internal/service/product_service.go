package service

import (
	"context"
	"log/slog"

	"github.com/iyhunko/product-catalog/internal/metrics"
	"github.com/iyhunko/product-catalog/internal/model"
	"github.com/iyhunko/product-catalog/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	msgAllFieldsRequired = "All fields are required"
	msgNameImageRequired = "Name and image are required fields and cannot be empty"
)

// CreateProductInput holds the fields of a new product.
// Zero values count as missing, so a price of 0 is rejected.
type CreateProductInput struct {
	Name        string
	Image       string
	Price       decimal.Decimal
	Description string
}

// UpdateProductInput holds a partial product. Nil fields keep the stored value.
type UpdateProductInput struct {
	Name        *string
	Image       *string
	Price       *decimal.Decimal
	Description *string
}

type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

func (ps *ProductService) ListProducts(ctx context.Context) ([]*model.Product, error) {
	return ps.repo.List(ctx)
}

func (ps *ProductService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return ps.repo.FindByID(ctx, id)
}

func (ps *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	if in.Name == "" || in.Image == "" || in.Price.IsZero() || in.Description == "" {
		return nil, &ValidationError{Message: msgAllFieldsRequired}
	}

	created, err := ps.repo.Create(ctx, &model.Product{
		Name:        in.Name,
		Image:       in.Image,
		Price:       in.Price,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}

	metrics.ProductsCreated.Inc()
	slog.Debug("product created", slog.Int64("product_id", created.ID))

	return created, nil
}

// UpdateProduct merges in over the stored product and writes every column back.
// The read and the write share one transaction with the row locked.
func (ps *ProductService) UpdateProduct(ctx context.Context, id int64, in UpdateProductInput) (*model.Product, error) {
	if (in.Name != nil && *in.Name == "") || (in.Image != nil && *in.Image == "") {
		return nil, &ValidationError{Message: msgNameImageRequired}
	}

	var updated *model.Product
	err := ps.repo.WithinTransaction(ctx, func(repo repository.ProductRepository) error {
		existing, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		merged := mergeProduct(existing, in)
		if merged.Name == "" || merged.Image == "" {
			return &ValidationError{Message: msgNameImageRequired}
		}

		updated, err = repo.Update(ctx, merged)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ProductsUpdated.Inc()
	slog.Debug("product updated", slog.Int64("product_id", updated.ID))

	return updated, nil
}

func (ps *ProductService) DeleteProduct(ctx context.Context, id int64) (*model.Product, error) {
	deleted, err := ps.repo.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.ProductsDeleted.Inc()
	slog.Debug("product deleted", slog.Int64("product_id", deleted.ID))

	return deleted, nil
}

func mergeProduct(existing *model.Product, in UpdateProductInput) *model.Product {
	merged := *existing
	if in.Name != nil {
		merged.Name = *in.Name
	}
	if in.Image != nil {
		merged.Image = *in.Image
	}
	if in.Price != nil {
		merged.Price = *in.Price
	}
	if in.Description != nil {
		merged.Description = *in.Description
	}
	return &merged
}
