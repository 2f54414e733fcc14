package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/client"
	"github.com/iyhunko/product-catalog/internal/config"
	"github.com/iyhunko/product-catalog/internal/gate"
	httpAPI "github.com/iyhunko/product-catalog/internal/http"
	"github.com/iyhunko/product-catalog/internal/http/controller"
	"github.com/iyhunko/product-catalog/internal/repository/repotest"
	"github.com/iyhunko/product-catalog/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, g *gate.Gate) (*client.Client, *repotest.ProductRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conf := &config.Config{
		HTTPServer: config.HTTPServer{Port: "3000", APIPrefix: "/api"},
	}
	repo := repotest.NewProductRepository()
	productCtr := controller.NewProductController(service.NewProductService(repo))
	router := httpAPI.InitRouter(conf, gin.New(), controller.New(conf), productCtr, g)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return client.New(srv.URL + "/api"), repo
}

func strPtr(s string) *string { return &s }

func TestClient_CRUD(t *testing.T) {
	c, _ := startServer(t, nil)
	ctx := context.Background()

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)

	created, err := c.Create(ctx, client.NewProduct{
		Name:        "Mug",
		Image:       "https://example.com/mug.png",
		Price:       decimal.RequireFromString("9.99"),
		Description: "Ceramic",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("9.99")))
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)

	updated, err := c.Update(ctx, created.ID, client.ProductUpdate{Name: strPtr("Big Mug")})
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", updated.Name)
	assert.Equal(t, "Ceramic", updated.Description)

	products, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	deleted, err := c.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", deleted.Name)

	_, err = c.Get(ctx, created.ID)
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Product not found", apiErr.Message)
	assert.Equal(t, "API endpoint not found. Check backend routes.", apiErr.UserMessage)
}

func TestClient_ValidationError(t *testing.T) {
	c, _ := startServer(t, nil)

	_, err := c.Create(context.Background(), client.NewProduct{Name: "Mug"})

	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "All fields are required", apiErr.Message)
	assert.Empty(t, apiErr.UserMessage)
}

func TestClient_ServerError(t *testing.T) {
	c, repo := startServer(t, nil)
	repo.Err = errors.New("connection refused")

	_, err := c.List(context.Background())

	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Server error. Please check the backend logs.", apiErr.UserMessage)
}

func TestClient_Health(t *testing.T) {
	c, _ := startServer(t, nil)

	status, err := c.Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "Backend is running", status.Message)
}

func TestClient_PassesGate(t *testing.T) {
	g := gate.New(gate.Options{Capacity: 2, RefillRate: 1, Interval: time.Hour, HealthPath: "/api/health"})
	c, _ := startServer(t, g)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.List(ctx)
		require.NoError(t, err)
	}

	_, err := c.List(ctx)
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "Too many requests, please try again later", apiErr.Message)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := client.New(url+"/api", client.WithTimeout(time.Second))
	_, err := c.List(context.Background())

	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsNetworkError())
	assert.Contains(t, apiErr.UserMessage, "Cannot connect to server")
}

func TestNew_DefaultBaseURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL + "/api/")
	_, err := c.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/api/products", gotPath)
	assert.Equal(t, "http://localhost:3000/api", client.DefaultBaseURL)
}

func TestWithTimeout_LeavesSharedClientUntouched(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slow.Close)

	shared := &http.Client{Timeout: 5 * time.Second}
	c := client.New(slow.URL, client.WithHTTPClient(shared), client.WithTimeout(50*time.Millisecond))

	_, err := c.Health(context.Background())

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNetworkError())
	assert.Equal(t, 5*time.Second, shared.Timeout)
}
