package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auditlog"
	"rollcall/internal/auth"
	"rollcall/internal/fault"
	"rollcall/internal/roster"
)

type managerRequest struct {
	SheetID      string `json:"sheetId" binding:"required"`
	Identifier   string `json:"identifier" binding:"required"`
	EventID      string `json:"eventId" binding:"required"`
	Operator     string `json:"operator"`
	AttendeeName string `json:"attendeeName"`
}

// ManagerAction serves one staff state-transition endpoint. The audit action
// code names the operation; the switch below dispatches to the matching
// roster transition and shapes its response.
func (h *Handler) ManagerAction(track roster.Track, action auditlog.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req managerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing sheetId, identifier or eventId."})
			return
		}
		ctx := c.Request.Context()
		operator := auth.Operator(c, req.Operator)

		var (
			rec    roster.Record
			body   gin.H
			detail string
			err    error
		)

		switch action {
		case auditlog.CancelCheckin:
			rec, err = h.roster.CancelCheckIn(ctx, req.SheetID, track, req.Identifier)
			body = gin.H{"success": true, "message": "Check-in cancelled; status restored to unchecked.", "data": rec}

		case auditlog.MarkCancelled:
			rec, err = h.roster.MarkCancelled(ctx, req.SheetID, track, req.Identifier)
			body = gin.H{"success": true, "message": "Marked as not attending.", "data": rec}

		case auditlog.MarkLate:
			rec, err = h.roster.ToggleLate(ctx, req.SheetID, track, req.Identifier)
			if err == nil {
				if rec.Status == roster.Late {
					detail = "Marked as late."
				} else {
					detail = "Late mark removed."
				}
				body = gin.H{"success": true, "message": detail, "newStatus": rec.Status, "data": rec}
			}

		case auditlog.ToggleContact:
			var res roster.ContactResult
			res, err = h.roster.ToggleContact(ctx, req.SheetID, track, req.Identifier)
			if err == nil {
				rec = res.Record
				if res.Contacted {
					detail = "Marked as contacted."
				} else {
					detail = "Contact mark removed."
				}
				body = gin.H{"success": true, "message": detail, "newStatus": res.Contacted, "updated": res.Updated}
			}

		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": fault.BusyMessage})
			return
		}

		name := subjectName(req.AttendeeName, rec.Name)
		if err != nil {
			h.audit.Log(ctx, auditlog.Entry{
				EventID:    req.EventID,
				Action:     action.Failure(),
				Identifier: req.Identifier,
				Name:       name,
				Result:     auditlog.Failed,
				Detail:     fault.MessageOf(err),
				Operator:   operator,
			})
			kind := fault.KindOf(err)
			if kind == fault.RemoteQuotaExceeded || kind == fault.RemoteTransient || kind == fault.Unknown {
				h.systemAudit(c, req.EventID, auditlog.SystemError, c.FullPath(), err)
			}
			h.respondError(c, err)
			return
		}

		h.audit.Log(ctx, auditlog.Entry{
			EventID:    req.EventID,
			Action:     action,
			Identifier: req.Identifier,
			Name:       name,
			Result:     auditlog.Success,
			Detail:     detail,
			Operator:   operator,
		})
		c.JSON(http.StatusOK, body)
	}
}
