package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auditlog"
	"rollcall/internal/auth"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
	Operator string `json:"operator"`
}

// AdminLogin validates the staff password held on the configuration sheet
// and issues a session token for the manager and admin routes.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Password is required."})
		return
	}

	expected, err := h.events.AdminPassword(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(expected)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Incorrect password."})
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = "staff"
	}
	token, exp, err := auth.Issue(operator, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.SessionTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.audit.Log(c.Request.Context(), auditlog.Entry{
		EventID:  c.Query("eventId"),
		Action:   auditlog.AdminLogin,
		Result:   auditlog.Success,
		Operator: operator,
	})
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"expires_at": exp.Unix(),
	})
}

// EventsList returns every configured event.
func (h *Handler) EventsList(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": events})
}

// EventSheets resolves one event's roster and log sheet references,
// including direct edit URLs for staff convenience.
func (h *Handler) EventSheets(c *gin.Context) {
	eventID := c.Query("eventId")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing eventId parameter."})
		return
	}
	cfg, err := h.events.Lookup(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	data := gin.H{
		"eventId":       cfg.EventID,
		"track":         cfg.Track,
		"rosterSheetId": cfg.RosterSheetID,
		"logSheetId":    cfg.LogSheetID,
	}
	if cfg.RosterSheetID != "" {
		data["rosterSheetUrl"] = sheetEditURL(cfg.RosterSheetID)
	}
	if cfg.LogSheetID != "" {
		data["logSheetUrl"] = sheetEditURL(cfg.LogSheetID)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// LoadtestSummary aggregates an event's audit trail.
func (h *Handler) LoadtestSummary(c *gin.Context) {
	eventID := c.Query("eventId")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing eventId parameter."})
		return
	}
	sum, err := h.audit.Summarize(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sum})
}

func sheetEditURL(sheetID string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", sheetID)
}
