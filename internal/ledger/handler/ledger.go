package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriledger/veriledger/internal/chain"
)

// LedgerHandler exposes the ledger service boundary over HTTP. All
// algorithmic logic lives in chain.Service; the handler only binds,
// delegates and formats.
type LedgerHandler struct {
	svc    *chain.Service
	auth   gin.HandlerFunc // nil = appends are open (auth enforced upstream)
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *chain.Service, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

// SetAuthMiddleware installs bearer-token enforcement on the append route.
// Authorization policy itself belongs to the surrounding identity service;
// this is only the boundary hook.
func (h *LedgerHandler) SetAuthMiddleware(mw gin.HandlerFunc) {
	h.auth = mw
}

func (h *LedgerHandler) requireAuth() gin.HandlerFunc {
	if h.auth == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return h.auth
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger/:tenant_id")
	{
		l.GET("", h.Overview)
		l.POST("/events", h.requireAuth(), h.AppendEvent)
		l.GET("/events", h.ListEvents)
		l.GET("/events/:id", h.GetEvent)
		l.GET("/verify", h.VerifyChain)
		l.GET("/export", h.ExportChain)
	}
}

// appendRequest is the POST /events payload.
type appendRequest struct {
	EventType     string          `json:"event_type" binding:"required"`
	EventData     json.RawMessage `json:"event_data" binding:"required"`
	UserID        string          `json:"user_id"`
	CorrelationID string          `json:"correlation_id"`
	Description   string          `json:"description"`
}

// AppendEvent handles POST /ledger/:tenant_id/events.
func (h *LedgerHandler) AppendEvent(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_type and event_data are required"})
		return
	}

	event, err := h.svc.Append(ctx, chain.AppendRequest{
		TenantID:      tenantID,
		EventType:     req.EventType,
		EventData:     req.EventData,
		UserID:        req.UserID,
		CorrelationID: req.CorrelationID,
		Description:   req.Description,
	})
	if err != nil {
		RecordAppend(false)
		switch {
		case errors.Is(err, chain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, chain.ErrChainCollision):
			h.logger.Error("chain hash collision", zap.String("tenant_id", tenantID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chain integrity violation"})
		case errors.Is(err, chain.ErrRetryable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "append conflict, safe to retry"})
		default:
			h.logger.Error("ledger append", zap.String("tenant_id", tenantID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append event"})
		}
		return
	}

	RecordAppend(true)
	c.JSON(http.StatusCreated, event)
}

// VerifyChain handles GET /ledger/:tenant_id/verify. A failed integrity
// check is a normal 200 answer with valid=false; only an inability to run
// the check at all is a transport error.
func (h *LedgerHandler) VerifyChain(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	start := time.Now()
	res, err := h.svc.Verify(ctx, tenantID)
	if err != nil {
		if errors.Is(err, chain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("ledger verify", zap.String("tenant_id", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify chain"})
		return
	}
	RecordVerify(res.Valid, time.Since(start))

	if !res.Valid {
		h.logger.Warn("chain integrity check failed",
			zap.String("tenant_id", tenantID),
			zap.String("detail", res.Error),
		)
	}
	c.JSON(http.StatusOK, res)
}

// ListEvents handles GET /ledger/:tenant_id/events. Optional query filters:
// event_type, since (RFC3339), limit. Filtering is a read-only projection;
// chronological order is always preserved.
func (h *LedgerHandler) ListEvents(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
	}

	events, err := h.svc.List(ctx, tenantID)
	if err != nil {
		h.logger.Error("ledger list", zap.String("tenant_id", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	eventType := c.Query("event_type")
	filtered := make([]*chain.Event, 0, len(events))
	for _, e := range events {
		if eventType != "" && e.EventType != eventType {
			continue
		}
		if !since.IsZero() && e.CreatedAt.Before(since) {
			continue
		}
		filtered = append(filtered, e)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id": tenantID,
		"count":     len(filtered),
		"events":    filtered,
	})
}

// GetEvent handles GET /ledger/:tenant_id/events/:id.
func (h *LedgerHandler) GetEvent(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	event, err := h.svc.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("ledger get", zap.String("tenant_id", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get event"})
		return
	}
	c.JSON(http.StatusOK, event)
}

// ExportChain handles GET /ledger/:tenant_id/export — the full chain as a
// newline-delimited JSON download.
func (h *LedgerHandler) ExportChain(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	events, err := h.svc.List(ctx, tenantID)
	if err != nil {
		h.logger.Error("ledger export", zap.String("tenant_id", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export chain"})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tenantID+"-ledger.ndjson"))
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			h.logger.Warn("ledger export write", zap.Error(err))
			return
		}
	}
}

// Overview handles GET /ledger/:tenant_id — event count and current tip.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")

	sum, err := h.svc.Summarize(ctx, tenantID)
	if err != nil {
		h.logger.Error("ledger overview", zap.String("tenant_id", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	c.JSON(http.StatusOK, sum)
}
