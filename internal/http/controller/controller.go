package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/config"
)

// timestampLayout matches JavaScript's Date.toISOString output.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Controller handles general HTTP requests.
type Controller struct {
	config *config.Config
	now    func() time.Time
}

// New creates a new Controller with the given configuration.
func New(config *config.Config) *Controller {
	return &Controller{
		config: config,
		now:    time.Now,
	}
}

// Health handles the HTTP GET request for the health check endpoint.
func (con *Controller) Health(c *gin.Context) {
	port, err := strconv.Atoi(con.config.HTTPServer.Port)
	var portValue any = port
	if err != nil {
		portValue = con.config.HTTPServer.Port
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Backend is running",
		"port":      portValue,
		"timestamp": con.now().UTC().Format(timestampLayout),
	})
}
