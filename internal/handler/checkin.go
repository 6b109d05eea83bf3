package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/admission"
	"rollcall/internal/auditlog"
	"rollcall/internal/fault"
	"rollcall/internal/metrics"
	"rollcall/internal/roster"
)

type checkinRequest struct {
	Identifier   string `json:"identifier" binding:"required"`
	SheetID      string `json:"sheetId" binding:"required"`
	EventID      string `json:"eventId"`
	Operator     string `json:"operator"`
	AttendeeName string `json:"attendeeName"`
	Source       string `json:"source"`
}

// CheckIn is the admission-gated check-in endpoint for one track. Domain
// misses (unknown identifier, repeat check-in) answer 200 with success=false
// so kiosk clients can render the message directly; only admission, quota,
// validation and remote failures use error status codes.
func (h *Handler) CheckIn(track roster.Track, gate *admission.Controller) gin.HandlerFunc {
	endpoint := "/api/checkin"
	if track == roster.Kids {
		endpoint = "/api/kids/checkin"
	}

	return func(c *gin.Context) {
		if !gate.TryAdmit() {
			metrics.AdmissionRejected.WithLabelValues(endpoint).Inc()
			metrics.Checkins.WithLabelValues(string(track), fault.RateLimited.String()).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": fault.RateLimitMessage})
			return
		}

		var req checkinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required parameters."})
			return
		}

		action := auditlog.Checkin
		if req.Source == "staff" {
			action = auditlog.ManagerCheckin
		}

		rec, err := h.roster.CheckIn(c.Request.Context(), req.SheetID, track, req.Identifier)
		if err != nil {
			h.checkinFailure(c, req, endpoint, track, action, rec, err)
			return
		}

		metrics.Checkins.WithLabelValues(string(track), "success").Inc()
		h.audit.Log(c.Request.Context(), auditlog.Entry{
			EventID:    req.EventID,
			Action:     action,
			Identifier: req.Identifier,
			Name:       subjectName(req.AttendeeName, rec.Name),
			Result:     auditlog.Success,
			Operator:   req.Operator,
		})
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Check-in successful!", "data": rec})
	}
}

func (h *Handler) checkinFailure(c *gin.Context, req checkinRequest, endpoint string, track roster.Track, action auditlog.Action, rec roster.Record, err error) {
	kind := fault.KindOf(err)
	metrics.Checkins.WithLabelValues(string(track), kind.String()).Inc()

	switch kind {
	case fault.AlreadyProcessed:
		// Idempotent read: the stored record comes back untouched.
		h.auditFailure(c, req, action, err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": fault.MessageOf(err), "data": rec})

	case fault.NotFound, fault.PreconditionFailed:
		h.auditFailure(c, req, action, err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": fault.MessageOf(err)})

	case fault.RemoteQuotaExceeded:
		h.systemAudit(c, req.EventID, auditlog.SystemWarning, endpoint, err)
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": fault.BusyMessage})

	default:
		h.systemAudit(c, req.EventID, auditlog.SystemError, endpoint, err)
		h.respondError(c, err)
	}
}

func (h *Handler) auditFailure(c *gin.Context, req checkinRequest, action auditlog.Action, err error) {
	h.audit.Log(c.Request.Context(), auditlog.Entry{
		EventID:    req.EventID,
		Action:     action.Failure(),
		Identifier: req.Identifier,
		Name:       req.AttendeeName,
		Result:     auditlog.Failed,
		Detail:     fault.MessageOf(err),
		Operator:   req.Operator,
	})
}

// systemAudit records an infrastructure-level failure against the endpoint
// itself rather than an attendee.
func (h *Handler) systemAudit(c *gin.Context, eventID string, action auditlog.Action, endpoint string, err error) {
	h.audit.Log(c.Request.Context(), auditlog.Entry{
		EventID:    eventID,
		Action:     action,
		Identifier: endpoint,
		Result:     auditlog.Failed,
		Detail:     err.Error(),
		Operator:   "System",
	})
}

func subjectName(requested, resolved string) string {
	if resolved != "" {
		return resolved
	}
	return requested
}

// Attendees lists a roster, optionally filtered to checked or unchecked.
// The kids list is served through the snapshot cache.
func (h *Handler) Attendees(track roster.Track) gin.HandlerFunc {
	return func(c *gin.Context) {
		sheetID := c.Query("sheetId")
		if sheetID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing sheetId parameter."})
			return
		}
		useCache := track == roster.Kids
		records, err := h.roster.List(c.Request.Context(), sheetID, track, c.Query("filter"), useCache)
		if err != nil {
			h.systemAudit(c, c.Query("eventId"), auditlog.SystemError, c.FullPath(), err)
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": records, "total": len(records)})
	}
}

// Search resolves a query under the serial-first precedence policy. The kids
// search path reads through the snapshot cache to bound read quota under
// bursty traffic.
func (h *Handler) Search(track roster.Track) gin.HandlerFunc {
	return func(c *gin.Context) {
		sheetID, query := c.Query("sheetId"), c.Query("query")
		if sheetID == "" || query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required parameters."})
			return
		}
		useCache := track == roster.Kids
		records, err := h.roster.Search(c.Request.Context(), sheetID, track, query, useCache)
		if err != nil {
			h.systemAudit(c, c.Query("eventId"), auditlog.SystemError, c.FullPath(), err)
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": records, "count": len(records)})
	}
}
