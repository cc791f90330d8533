package catalog

import (
	"github.com/gin-gonic/gin"

	"github.com/pairprep/backend/pkg/response"
)

// Handler serves the problem bank over HTTP.
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a catalog handler.
func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

// List handles GET /problems?q=.
func (h *Handler) List(c *gin.Context) {
	list := h.catalog.List(c.Query("q"))
	response.OK(c, gin.H{"problems": list, "total": len(list)})
}

// Get handles GET /problems/:slug.
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.catalog.Get(c.Param("slug"))
	if !ok {
		response.NotFound(c, "problem not found")
		return
	}
	response.OK(c, p)
}
