// Package handler wires the HTTP surface: request decoding, admission
// checks, operation dispatch, outcome-to-status mapping, and audit routing.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollcall/internal/admission"
	"rollcall/internal/auditlog"
	"rollcall/internal/config"
	"rollcall/internal/eventcfg"
	"rollcall/internal/fault"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/roster"
)

// Handler carries the services behind the API.
type Handler struct {
	cfg    config.App
	roster *roster.Service
	events *eventcfg.Store
	audit  *auditlog.Router

	checkinGate *admission.Controller
	kidsGate    *admission.Controller

	log *zap.Logger
}

// New builds a Handler with one admission controller per check-in endpoint.
func New(cfg config.App, rosterSvc *roster.Service, events *eventcfg.Store, audit *auditlog.Router, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		roster:      rosterSvc,
		events:      events,
		audit:       audit,
		checkinGate: admission.New(cfg.CheckinLimit, cfg.CheckinWindow),
		kidsGate:    admission.New(cfg.KidsCheckinLimit, cfg.KidsCheckinWindow),
		log:         logger,
	}
}

// Register mounts all API routes. staffOnly guards manager and admin routes.
func (h *Handler) Register(r *gin.Engine, staffOnly gin.HandlerFunc) {
	api := r.Group("/api")

	api.POST("/checkin", h.CheckIn(roster.Adult, h.checkinGate))
	api.GET("/attendees", h.Attendees(roster.Adult))
	api.GET("/search", h.Search(roster.Adult))

	api.POST("/kids/checkin", h.CheckIn(roster.Kids, h.kidsGate))
	api.GET("/kids/attendees", h.Attendees(roster.Kids))
	api.GET("/kids/search", h.Search(roster.Kids))

	api.GET("/events/list", h.EventsList)
	api.POST("/admin/login", h.AdminLogin)

	manager := api.Group("/manager", staffOnly)
	manager.POST("/cancel-checkin", h.ManagerAction(roster.Adult, auditlog.CancelCheckin))
	manager.POST("/mark-cancelled", h.ManagerAction(roster.Adult, auditlog.MarkCancelled))
	manager.POST("/mark-late", h.ManagerAction(roster.Adult, auditlog.MarkLate))

	kidsManager := api.Group("/kids/manager", staffOnly)
	kidsManager.POST("/cancel-checkin", h.ManagerAction(roster.Kids, auditlog.CancelCheckin))
	kidsManager.POST("/mark-cancelled", h.ManagerAction(roster.Kids, auditlog.MarkCancelled))
	kidsManager.POST("/toggle-contact", h.ManagerAction(roster.Kids, auditlog.ToggleContact))

	admin := api.Group("/admin", staffOnly)
	admin.GET("/event-sheets", h.EventSheets)
	admin.GET("/loadtest-summary", h.LoadtestSummary)
}

// respondError maps a classified failure to the endpoint-agnostic response
// shape. The check-in endpoint overrides part of this mapping (see CheckIn).
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", httpmiddleware.GetRequestID(c)),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": fault.MessageOf(err)})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.Validation:
		return http.StatusBadRequest
	case fault.NotFound:
		return http.StatusNotFound
	case fault.AlreadyProcessed, fault.PreconditionFailed:
		return http.StatusBadRequest
	case fault.RateLimited, fault.RemoteQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
