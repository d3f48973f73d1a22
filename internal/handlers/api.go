package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/pipetrail/pipetrail/internal/config"
	"github.com/pipetrail/pipetrail/internal/graph"
	"github.com/pipetrail/pipetrail/internal/models"
	"github.com/pipetrail/pipetrail/internal/story"
)

// API is the stateless HTTP surface over the story manager.
type API struct {
	Store   graph.Store
	Manager *story.Manager
	Config  *config.Config
	Redis   *redis.Client
}

func NewAPI(store graph.Store, manager *story.Manager, cfg *config.Config, redisClient *redis.Client) *API {
	return &API{Store: store, Manager: manager, Config: cfg, Redis: redisClient}
}

// renderError converts internal errors to the HTTP error taxonomy. Every
// JSON error body is {status, message}.
func (a *API) renderError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var notFound *models.NotFoundError

	status := http.StatusInternalServerError
	message := err.Error()
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		message = validation.Message
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		message = notFound.Message
	case errors.Is(err, graph.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = "The database connection failed"
	}
	c.JSON(status, gin.H{"status": status, "message": message})
}

func validationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "message": message})
}
