package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/model"
	"github.com/iyhunko/product-catalog/internal/service"
	"github.com/shopspring/decimal"
)

const (
	msgInvalidID        = "Invalid product ID"
	msgInvalidBody      = "Invalid request body"
	msgProductNotFound  = "Product not found"
	msgInternalError    = "Internal server error"
	requestIDContextKey = "request_id"
	priceDecimalPlaces  = 2
)

// ProductController handles HTTP requests for product operations.
type ProductController struct {
	productService *service.ProductService
}

// NewProductController creates a new ProductController with the given product service.
func NewProductController(productService *service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

// CreateProductRequest represents the request body for creating a product.
type CreateProductRequest struct {
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

// UpdateProductRequest represents a partial product; absent or null fields are kept.
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Image       *string          `json:"image"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
}

// ProductResponse represents the response body for a product.
type ProductResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	Price       string `json:"price"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// ProductEnvelope wraps a single product.
type ProductEnvelope struct {
	Success bool            `json:"success"`
	Product ProductResponse `json:"product"`
}

// ErrorResponse is returned for every failed product request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListProducts handles the HTTP GET request for listing all products.
func (pc *ProductController) ListProducts(c *gin.Context) {
	products, err := pc.productService.ListProducts(c.Request.Context())
	if err != nil {
		pc.handleError(c, "list products", err)
		return
	}

	response := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		response = append(response, toProductResponse(product))
	}

	c.JSON(http.StatusOK, response)
}

// GetProduct handles the HTTP GET request for a single product.
func (pc *ProductController) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := pc.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		pc.handleError(c, "get product", err)
		return
	}

	c.JSON(http.StatusOK, ProductEnvelope{Success: true, Product: toProductResponse(product)})
}

// CreateProduct handles the HTTP POST request for creating a new product.
func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if !bindBody(c, &req) {
		return
	}

	created, err := pc.productService.CreateProduct(c.Request.Context(), service.CreateProductInput{
		Name:        req.Name,
		Image:       req.Image,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		pc.handleError(c, "create product", err)
		return
	}

	c.JSON(http.StatusCreated, ProductEnvelope{Success: true, Product: toProductResponse(created)})
}

// UpdateProduct handles the HTTP PUT request for updating a product by ID.
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !bindBody(c, &req) {
		return
	}

	updated, err := pc.productService.UpdateProduct(c.Request.Context(), id, service.UpdateProductInput{
		Name:        req.Name,
		Image:       req.Image,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		pc.handleError(c, "update product", err)
		return
	}

	c.JSON(http.StatusOK, ProductEnvelope{Success: true, Product: toProductResponse(updated)})
}

// DeleteProduct handles the HTTP DELETE request for deleting a product by ID.
func (pc *ProductController) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := pc.productService.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		pc.handleError(c, "delete product", err)
		return
	}

	c.JSON(http.StatusOK, ProductEnvelope{Success: true, Product: toProductResponse(deleted)})
}

func (pc *ProductController) handleError(c *gin.Context, op string, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: vErr.Message})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: msgProductNotFound})
	default:
		slog.Error("failed to "+op,
			slog.String("error", err.Error()),
			slog.String(requestIDContextKey, c.GetString(requestIDContextKey)),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: msgInternalError})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: msgInvalidID})
		return 0, false
	}
	return id, true
}

// bindBody decodes the JSON body into dst. An empty body counts as {}.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: msgInvalidBody})
		return false
	}
	return true
}

func toProductResponse(product *model.Product) ProductResponse {
	return ProductResponse{
		ID:          product.ID,
		Name:        product.Name,
		Image:       product.Image,
		Price:       product.Price.StringFixed(priceDecimalPlaces),
		Description: product.Description,
		CreatedAt:   product.CreatedAt.Format(time.RFC3339Nano),
	}
}
