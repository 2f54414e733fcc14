package http

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/config"
	"github.com/iyhunko/product-catalog/internal/gate"
	"github.com/iyhunko/product-catalog/internal/http/controller"
	"github.com/iyhunko/product-catalog/internal/http/middleware"
)

// InitRouter registers middleware and routes on server. A nil g disables the request gate.
func InitRouter(conf *config.Config, server *gin.Engine, ctr *controller.Controller, productCtr *controller.ProductController, g *gate.Gate) *gin.Engine {
	// Apply recovery middleware globally to prevent panics from crashing the server
	server.Use(middleware.Recovery())
	server.Use(middleware.RequestID())
	server.Use(middleware.Logger())
	server.Use(middleware.SecurityHeaders())
	server.Use(middleware.CORS(conf.CORS.AllowedOrigins, !conf.IsProduction()))
	if g != nil {
		server.Use(middleware.Gate(g, conf.Gate.TrustXFF))
	}

	prefix := conf.HTTPServer.APIPrefix
	api := server.Group(prefix)
	{
		api.GET("/health", ctr.Health)
	}

	// Product endpoints
	products := api.Group("/products")
	{
		products.GET("", productCtr.ListProducts)
		products.POST("", productCtr.CreateProduct)
		products.GET("/:id", productCtr.GetProduct)
		products.PUT("/:id", productCtr.UpdateProduct)
		products.DELETE("/:id", productCtr.DeleteProduct)
	}

	staticDir := ""
	if conf.IsProduction() {
		staticDir = conf.HTTPServer.StaticDir
	}
	server.NoRoute(noRoute(prefix, staticDir))

	return server
}

func noRoute(prefix, staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		isAPI := prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
		isRead := c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead

		if !isAPI && staticDir != "" && isRead {
			serveStatic(c, staticDir)
			return
		}

		message := "Not found"
		if isAPI {
			message = fmt.Sprintf("API endpoint not found: %s %s", c.Request.Method, p)
		}
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": message,
		})
	}
}

// serveStatic serves a file from dir, falling back to index.html for client-side routes.
func serveStatic(c *gin.Context, dir string) {
	name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		c.File(name)
		return
	}
	c.File(filepath.Join(dir, "index.html"))
}
