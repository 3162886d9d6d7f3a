package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-expense/internal/application/service"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services      Services
	health        HealthFunc
	maxUploadSize int64
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthFunc, maxUploadSize int64, logger Logger) *Handlers {
	return &Handlers{
		services:      services,
		health:        health,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	status := http.StatusOK
	if h.health != nil {
		healthy, components := h.health(c.Request.Context())
		response.Components = components
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// respondError maps service errors to status codes. Unexpected errors are logged and hidden.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var domainErr *expense.Error
	msg := err.Error()
	if errors.As(err, &domainErr) {
		msg = domainErr.Error()
	}

	var status int
	switch {
	case errors.Is(err, expense.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, expense.ErrUser):
		status = http.StatusBadRequest
	case errors.Is(err, expense.ErrAccess):
		status = http.StatusForbidden
	case errors.Is(err, expense.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrExtractionUnavailable):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		status = http.StatusInternalServerError
		msg = "internal server error"
	}

	c.JSON(status, Response{Success: false, Error: msg})
}

// pathID parses the :id path parameter, answering 400 when it is not a positive integer
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, answering 400 on malformed input
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// companyID reads the required company_id query parameter
func companyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("company_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "company_id is required")
		return 0, false
	}
	return id, true
}

// Date is a calendar date in YYYY-MM-DD form
type Date struct {
	time.Time
}

// UnmarshalJSON parses "YYYY-MM-DD"
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

// timePtr converts an optional Date
func (d *Date) timePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// idsRequest selects the records a batch action applies to
type idsRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1,unique"`
}
