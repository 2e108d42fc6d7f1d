package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/models"
)

const dateOnly = "2006-01-02"

// scopeQuery reads companyId and locationId from the query string.
func scopeQuery(c *gin.Context) models.Scope {
	return models.Scope{CompanyID: c.Query("companyId"), LocationID: c.Query("locationId")}
}

// parseDate accepts RFC3339 or YYYY-MM-DD. A date-only end bound covers
// the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil //nolint:nilnil // absent bound.
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}

	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}

	return &t, nil
}

// auditQuery builds an audit lookup from query parameters. keyParam names
// the query parameter that filters on the entity's key.
func auditQuery(c *gin.Context, entityType, keyParam string) (models.AuditQuery, error) {
	verr := &models.ValidationError{}

	q := models.AuditQuery{
		Scope:      scopeQuery(c),
		EntityType: entityType,
		EntityID:   strings.TrimSpace(c.Query("entityId")),
		Action:     strings.TrimSpace(c.Query("action")),
		SearchTerm: strings.TrimSpace(c.Query("searchTerm")),
	}
	if keyParam != "" {
		q.Key = strings.TrimSpace(c.Query(keyParam))
	}

	start, err := parseDate(c.Query("startDate"), false)
	if err != nil {
		verr.Add("startDate must be RFC3339 or YYYY-MM-DD")
	}
	end, err := parseDate(c.Query("endDate"), true)
	if err != nil {
		verr.Add("endDate must be RFC3339 or YYYY-MM-DD")
	}
	q.Start, q.End = start, end

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("limit must be an integer")
		}
		q.Limit = n
	}

	return q, verr.Err()
}
