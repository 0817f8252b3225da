package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRules returns the alert rules of one user.
func (h *Handler) GetRules(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-rules")
	defer span.End()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user_id", userID))

	rules, err := h.alertService.ListRules(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// GetSettings returns the alert settings of one user, creating defaults on
// first access.
func (h *Handler) GetSettings(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-settings")
	defer span.End()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	settings, err := h.alertService.GetSettings(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// ResolveTicker maps a ticker to its asset, exercising the same path the
// scheduler uses.
func (h *Handler) ResolveTicker(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.resolve-ticker")
	defer span.End()

	ticker := strings.TrimSpace(c.Param("ticker"))
	if !service.ValidTicker(ticker) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticker: " + ticker})
		return
	}
	span.SetAttributes(attribute.String("ticker", ticker))

	asset, err := h.alertService.ResolveTicker(ticker)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

func (h *Handler) GetResolverStats(c *gin.Context) {
	if h.alertService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert service unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.get-resolver-stats")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"stats": h.alertService.ResolverStats()})
}

func parseUserID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("user_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
		return 0, false
	}
	return id, true
}
