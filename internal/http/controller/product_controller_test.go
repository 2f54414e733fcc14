package controller_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/http/controller"
	"github.com/iyhunko/product-catalog/internal/repository/repotest"
	"github.com/iyhunko/product-catalog/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mugJSON = `{"name":"Mug","image":"https://example.com/mug.png","price":9.99,"description":"Ceramic"}`

func setupProductRouter(t *testing.T) (*gin.Engine, *repotest.ProductRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repotest.NewProductRepository()
	productCtr := controller.NewProductController(service.NewProductService(repo))

	router := gin.New()
	router.GET("/products", productCtr.ListProducts)
	router.POST("/products", productCtr.CreateProduct)
	router.GET("/products/:id", productCtr.GetProduct)
	router.PUT("/products/:id", productCtr.UpdateProduct)
	router.DELETE("/products/:id", productCtr.DeleteProduct)

	return router, repo
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) controller.ProductEnvelope {
	t.Helper()
	var env controller.ProductEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestProductController_Create(t *testing.T) {
	router, _ := setupProductRouter(t)

	w := doRequest(router, http.MethodPost, "/products", mugJSON)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, int64(1), env.Product.ID)
	assert.Equal(t, "Mug", env.Product.Name)
	assert.Equal(t, "https://example.com/mug.png", env.Product.Image)
	assert.Equal(t, "9.99", env.Product.Price)
	assert.Equal(t, "Ceramic", env.Product.Description)
	assert.NotEmpty(t, env.Product.CreatedAt)
}

func TestProductController_CreatePriceFormatting(t *testing.T) {
	router, _ := setupProductRouter(t)

	w := doRequest(router, http.MethodPost, "/products", `{"name":"n","image":"i","price":"12","description":"d"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "12.00", decodeEnvelope(t, w).Product.Price)
}

func TestProductController_CreateValidation(t *testing.T) {
	bodies := map[string]string{
		"missing name":        `{"image":"i","price":1,"description":"d"}`,
		"null image":          `{"name":"n","image":null,"price":1,"description":"d"}`,
		"empty description":   `{"name":"n","image":"i","price":1,"description":""}`,
		"zero price":          `{"name":"n","image":"i","price":0,"description":"d"}`,
		"empty object":        `{}`,
		"missing price field": `{"name":"n","image":"i","description":"d"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			router, _ := setupProductRouter(t)

			w := doRequest(router, http.MethodPost, "/products", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"success":false,"message":"All fields are required"}`, w.Body.String())
		})
	}
}

func TestProductController_MalformedBody(t *testing.T) {
	router, _ := setupProductRouter(t)

	w := doRequest(router, http.MethodPost, "/products", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid request body"}`, w.Body.String())
}

func TestProductController_List(t *testing.T) {
	router, _ := setupProductRouter(t)

	w := doRequest(router, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	doRequest(router, http.MethodPost, "/products", mugJSON)
	doRequest(router, http.MethodPost, "/products", `{"name":"Plate","image":"i","price":4.5,"description":"d"}`)

	w = doRequest(router, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var products []controller.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Plate", products[0].Name, "newest first")
	assert.Equal(t, "4.50", products[0].Price)
	assert.Equal(t, "Mug", products[1].Name)
}

func TestProductController_Get(t *testing.T) {
	router, _ := setupProductRouter(t)
	doRequest(router, http.MethodPost, "/products", mugJSON)

	t.Run("existing product", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/products/1", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Mug", decodeEnvelope(t, w).Product.Name)
	})

	t.Run("missing product", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/products/99", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"Product not found"}`, w.Body.String())
	})

	for _, id := range []string{"abc", "0", "-4", "1.5"} {
		t.Run("invalid id "+id, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/products/"+id, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"success":false,"message":"Invalid product ID"}`, w.Body.String())
		})
	}
}

func TestProductController_Update(t *testing.T) {
	t.Run("only price changes", func(t *testing.T) {
		router, _ := setupProductRouter(t)
		doRequest(router, http.MethodPost, "/products", mugJSON)

		w := doRequest(router, http.MethodPut, "/products/1", `{"price":12.5}`)

		require.Equal(t, http.StatusOK, w.Code)
		p := decodeEnvelope(t, w).Product
		assert.Equal(t, "12.50", p.Price)
		assert.Equal(t, "Mug", p.Name)
		assert.Equal(t, "https://example.com/mug.png", p.Image)
		assert.Equal(t, "Ceramic", p.Description)
	})

	t.Run("null name keeps stored value", func(t *testing.T) {
		router, _ := setupProductRouter(t)
		doRequest(router, http.MethodPost, "/products", mugJSON)

		w := doRequest(router, http.MethodPut, "/products/1", `{"name":null,"description":"Stoneware"}`)

		require.Equal(t, http.StatusOK, w.Code)
		p := decodeEnvelope(t, w).Product
		assert.Equal(t, "Mug", p.Name)
		assert.Equal(t, "Stoneware", p.Description)
	})

	t.Run("empty body keeps everything", func(t *testing.T) {
		router, _ := setupProductRouter(t)
		doRequest(router, http.MethodPost, "/products", mugJSON)

		w := doRequest(router, http.MethodPut, "/products/1", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Mug", decodeEnvelope(t, w).Product.Name)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		router, _ := setupProductRouter(t)
		doRequest(router, http.MethodPost, "/products", mugJSON)

		w := doRequest(router, http.MethodPut, "/products/1", `{"name":""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("missing product", func(t *testing.T) {
		router, _ := setupProductRouter(t)

		w := doRequest(router, http.MethodPut, "/products/5", `{"name":"x"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"Product not found"}`, w.Body.String())
	})
}

func TestProductController_Delete(t *testing.T) {
	router, _ := setupProductRouter(t)
	doRequest(router, http.MethodPost, "/products", mugJSON)

	w := doRequest(router, http.MethodDelete, "/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Mug", env.Product.Name)

	w = doRequest(router, http.MethodGet, "/products/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodDelete, "/products/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductController_StorageError(t *testing.T) {
	router, repo := setupProductRouter(t)
	repo.Err = errors.New("connection refused")

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodGet, "/products", ""},
		{http.MethodGet, "/products/1", ""},
		{http.MethodPost, "/products", mugJSON},
		{http.MethodPut, "/products/1", `{"name":"x"}`},
		{http.MethodDelete, "/products/1", ""},
	} {
		w := doRequest(router, tc.method, tc.target, tc.body)

		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.method+" "+tc.target)
		assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, w.Body.String())
		assert.NotContains(t, w.Body.String(), "connection refused")
	}
}
