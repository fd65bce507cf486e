// audit.go implements the HTTP handler for querying the audit trail.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corebase/corebase/internal/db/repositories"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// AuditHandlers handles audit log query endpoints
type AuditHandlers struct {
	audit *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(audit *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{audit: audit}
}

// @Summary      List audit log entries
// @Description  Newest first. Filterable by actor, project, action, and time
// @Description  range; paginated with limit and offset.
// @Tags         Audit
// @Produce      json
// @Param        actor_id    query  string  false  "Filter by actor ID"
// @Param        project_id  query  int     false  "Filter by project ID"
// @Param        action      query  string  false  "Filter by action"
// @Param        start       query  string  false  "RFC3339 lower bound"
// @Param        end         query  string  false  "RFC3339 upper bound"
// @Param        limit       query  int     false  "Page size (default 50, max 500)"
// @Param        offset      query  int     false  "Page offset"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/v1/admin/audit [get]
func (h *AuditHandlers) List(c *gin.Context) {
	filters := repositories.AuditFilters{}

	if v := c.Query("actor_id"); v != "" {
		filters.ActorID = &v
	}
	if v := c.Query("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id must be numeric"})
			return
		}
		filters.ProjectID = &id
	}
	if v := c.Query("action"); v != "" {
		filters.Action = &v
	}
	if v := c.Query("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
			return
		}
		filters.StartDate = &ts
	}
	if v := c.Query("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
			return
		}
		filters.EndDate = &ts
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditPageSize)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	entries, total, err := h.audit.List(c.Request.Context(), filters, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
