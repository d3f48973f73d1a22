package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pipetrail/pipetrail/internal/graph"
	"github.com/pipetrail/pipetrail/internal/models"
)

// resolvePivot resolves the requested kind/id, retrying the fallback kinds
// from the query string when the primary identifier matches nothing.
func (a *API) resolvePivot(ctx context.Context, c *gin.Context) (*graph.Node, error) {
	node, err := models.Resolve(ctx, a.Store, c.Param("kind"), c.Param("id"))
	var notFound *models.NotFoundError
	if err == nil || !errors.As(err, &notFound) {
		return node, err
	}

	for _, fallback := range c.QueryArray("fallback") {
		if _, ok := models.KindByName(fallback); !ok {
			return nil, &models.ValidationError{
				Message: "the fallback query parameter " + strconv.Quote(fallback) + " is not a valid resource type",
			}
		}
		node, fbErr := models.Resolve(ctx, a.Store, fallback, c.Param("id"))
		if fbErr == nil {
			return node, nil
		}
		var invalid *models.ValidationError
		var missing *models.NotFoundError
		if errors.As(fbErr, &invalid) || errors.As(fbErr, &missing) {
			continue
		}
		return nil, fbErr
	}
	return nil, err
}

// GetStory serves the single longest story through the pivot.
func (a *API) GetStory(c *gin.Context) {
	ctx := c.Request.Context()
	node, err := a.resolvePivot(ctx, c)
	if err != nil {
		a.renderError(c, err)
		return
	}
	resp, err := a.Manager.Story(ctx, node)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetAllStories serves every distinct story through the pivot.
func (a *API) GetAllStories(c *gin.Context) {
	ctx := c.Request.Context()
	node, err := a.resolvePivot(ctx, c)
	if err != nil {
		a.renderError(c, err)
		return
	}
	resp, err := a.Manager.AllStories(ctx, node)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSiblings serves the nodes at the stage adjacent to the pivot.
// backward_rel selects the preceding stage; story_type selects the variant.
func (a *API) GetSiblings(c *gin.Context) {
	backward := false
	if raw := c.Query("backward_rel"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			validationError(c, "the 'backward_rel' parameter must be a boolean")
			return
		}
		backward = parsed
	}
	variant := c.DefaultQuery("story_type", "container")

	ctx := c.Request.Context()
	node, err := models.Resolve(ctx, a.Store, c.Param("kind"), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	resp, err := a.Manager.Siblings(ctx, node, backward, variant)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
