package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iyhunko/product-catalog/internal/model"
	"github.com/iyhunko/product-catalog/internal/repository"
)

const productColumns = "id, name, image, price, description, created_at"

// ProductRepository implements repository.ProductRepository on top of database/sql.
type ProductRepository struct {
	db  *sql.DB
	txn *sql.Tx
}

// NewProductRepository creates a new ProductRepository instance.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// getExecutor returns the active executor (transaction if exists, otherwise db)
func (r *ProductRepository) getExecutor() dbExecutor {
	if r.txn != nil {
		return r.txn
	}
	return r.db
}

// WithinTransaction executes a function within a database transaction
func (r *ProductRepository) WithinTransaction(ctx context.Context, fn func(repo repository.ProductRepository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &ProductRepository{
		db:  r.db,
		txn: tx,
	}

	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Create inserts a new product and returns the stored row with its generated id and created_at.
func (r *ProductRepository) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	query := `INSERT INTO products (name, image, price, description)
	          VALUES ($1, $2, $3, $4)
	          RETURNING ` + productColumns

	stmt, err := r.getExecutor().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	created, err := scanProduct(stmt.QueryRowContext(ctx, product.Name, product.Image, product.Price, product.Description))
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	return created, nil
}

// List retrieves all products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC`

	stmt, err := r.getExecutor().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare select statement: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

// FindByID retrieves a single product by ID.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// FindByIDForUpdate retrieves a single product by ID and locks the row until the transaction ends.
func (r *ProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *ProductRepository) findOne(ctx context.Context, query string, id int64) (*model.Product, error) {
	stmt, err := r.getExecutor().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare select statement: %w", err)
	}
	defer stmt.Close()

	result, err := scanProduct(stmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return result, nil
}

// Update writes name, image, price and description of the product with product.ID.
func (r *ProductRepository) Update(ctx context.Context, product *model.Product) (*model.Product, error) {
	query := `UPDATE products
	          SET name = $1, image = $2, price = $3, description = $4
	          WHERE id = $5
	          RETURNING ` + productColumns

	stmt, err := r.getExecutor().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare update statement: %w", err)
	}
	defer stmt.Close()

	updated, err := scanProduct(stmt.QueryRowContext(ctx, product.Name, product.Image, product.Price, product.Description, product.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", repository.ErrNotFound, product.ID)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return updated, nil
}

// DeleteByID deletes a product by ID and returns the deleted row.
func (r *ProductRepository) DeleteByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `DELETE FROM products WHERE id = $1 RETURNING ` + productColumns

	stmt, err := r.getExecutor().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer stmt.Close()

	deleted, err := scanProduct(stmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	return deleted, nil
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var (
		product     model.Product
		description sql.NullString
	)
	err := row.Scan(&product.ID, &product.Name, &product.Image, &product.Price, &description, &product.CreatedAt)
	if err != nil {
		return nil, err
	}
	product.Description = description.String
	return &product, nil
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
