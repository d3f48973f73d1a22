package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pipetrail/pipetrail/internal/logger"
	"github.com/pipetrail/pipetrail/internal/models"
)

const recentsCacheKey = "pipetrail:recents"

// About reports whether authentication is required and the running version.
func (a *API) About(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"auth_required": a.Config.Auth.Enabled,
		"version":       a.Config.Version,
	})
}

// GetResource serves a single entity. The relationship query parameter
// (default true) controls whether first-degree relationships are expanded.
func (a *API) GetResource(c *gin.Context) {
	deep := true
	if raw := c.Query("relationship"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			validationError(c, "the 'relationship' parameter must be a boolean")
			return
		}
		deep = parsed
	}

	node, err := models.Resolve(c.Request.Context(), a.Store, c.Param("kind"), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	serialized, err := models.Serialize(c.Request.Context(), a.Store, node, deep)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, serialized)
}

// GetRelationship serves the deep expansion of one named relationship.
func (a *API) GetRelationship(c *gin.Context) {
	node, err := models.Resolve(c.Request.Context(), a.Store, c.Param("kind"), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	data, err := models.SerializeRelationship(c.Request.Context(), a.Store, node, c.Param("relationship"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Recents serves the five most recently updated nodes per tracked kind.
// When the cache is enabled the serialized payload is reused for a short
// TTL; cache failures fall back to the store and are only logged.
func (a *API) Recents(c *gin.Context) {
	if a.Redis != nil {
		cached, err := a.Redis.Get(c.Request.Context(), recentsCacheKey).Bytes()
		if err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		}
	}

	resp, err := a.Manager.Recents(c.Request.Context())
	if err != nil {
		a.renderError(c, err)
		return
	}

	if a.Redis != nil {
		if payload, err := json.Marshal(resp); err == nil {
			ttl := a.Config.Redis.TTL
			if ttl <= 0 {
				ttl = 30 * time.Second
			}
			if err := a.Redis.Set(c.Request.Context(), recentsCacheKey, payload, ttl).Err(); err != nil {
				logger.Warnf("caching recents failed: %v", err)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Healthcheck performs a trivial store round-trip.
func (a *API) Healthcheck(c *gin.Context) {
	if err := a.Store.Ping(c.Request.Context()); err != nil {
		logger.Errorf("healthcheck failed: %v", err)
		c.String(http.StatusServiceUnavailable, "The database connection failed")
		return
	}
	c.String(http.StatusOK, "Health check OK")
}

// Monitoring reports per-backend connectivity.
func (a *API) Monitoring(c *gin.Context) {
	neo4jUp := a.Store.Ping(c.Request.Context()) == nil

	redisUp := false
	if a.Redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		redisUp = a.Redis.Ping(ctx).Err() == nil
	}

	c.JSON(http.StatusOK, gin.H{"neo4j": neo4jUp, "redis": redisUp})
}
