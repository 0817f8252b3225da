package handler

import (
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer       trace.Tracer
	alertService *service.AlertService
}

func New(tracer trace.Tracer, alertService *service.AlertService) *Handler {
	return &Handler{
		tracer:       tracer,
		alertService: alertService,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/rules", h.GetRules)
	r.GET("/api/settings", h.GetSettings)
	r.GET("/api/resolve/:ticker", h.ResolveTicker)
	r.GET("/api/resolver/stats", h.GetResolverStats)
}
