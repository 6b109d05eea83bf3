package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rollcall/internal/auditlog"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/eventcfg"
	"rollcall/internal/handler"
	"rollcall/internal/roster"
	"rollcall/internal/sheets"
	"rollcall/internal/sheets/sheetstest"
)

const (
	cfgSheet    = "config"
	rosterSheet = "roster-abc"
	logSheet    = "log-abc"
	signingKey  = "test-signing-key"
	issuer      = "rollcall-test"
)

type env struct {
	router *gin.Engine
	sheets *sheetstest.Server
}

func newEnv(t *testing.T, checkinLimit int) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := sheetstest.New()
	t.Cleanup(srv.Close)

	srv.Set(cfgSheet, [][]string{
		{"Name", "Roster", "Event ID", "Note", "Log", "Track"},
		{"Spring", "https://docs.google.com/spreadsheets/d/roster-abc/edit", "spring", "", "https://docs.google.com/spreadsheets/d/log-abc/edit", ""},
	})
	srv.Set(cfgSheet+"!Info", [][]string{{""}, {"s3cret"}})
	srv.Set(rosterSheet, [][]string{
		{"Serial", "Name", "Arrival Time", "Status"},
		{"1", "Alice", "", ""},
		{"2", "Bob", "", ""},
		{"7", "Dave", "", ""},
	})

	cfg := config.App{
		JWTIssuer:         issuer,
		JWTSigningKey:     signingKey,
		SessionTTL:        time.Hour,
		Timezone:          "Asia/Taipei",
		CacheTTL:          10 * time.Second,
		CheckinLimit:      checkinLimit,
		CheckinWindow:     time.Minute,
		KidsCheckinLimit:  40,
		KidsCheckinWindow: time.Second,
	}

	client := sheets.New(srv.URL, nil)
	logger := zap.NewNop()
	rosterSvc := roster.NewService(client, cfg.CacheTTL, cfg.Timezone, logger)
	events := eventcfg.NewStore(client, cfgSheet, logger)
	audit := auditlog.NewRouter(client, events, nil, cfg.Timezone, logger)

	h := handler.New(cfg, rosterSvc, events, audit, logger)
	r := gin.New()
	h.Register(r, auth.StaffAuth(signingKey, issuer))
	return &env{router: r, sheets: srv}
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w, resp
}

func (e *env) staffToken(t *testing.T) string {
	t.Helper()
	_, resp := e.do(t, http.MethodPost, "/api/admin/login",
		map[string]string{"password": "s3cret", "operator": "desk-1"}, nil)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestCheckInSuccessThenRepeat(t *testing.T) {
	e := newEnv(t, 30)
	body := map[string]string{"identifier": "1", "sheetId": rosterSheet, "eventId": "spring"}

	w, resp := e.do(t, http.MethodPost, "/api/checkin", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "checked_in", data["status"])
	firstArrival := data["arrivalTime"].(string)
	assert.NotEmpty(t, firstArrival)

	// A repeat stays 200 but flips success and returns the stored record.
	w, resp = e.do(t, http.MethodPost, "/api/checkin", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["success"])
	data = resp["data"].(map[string]any)
	assert.Equal(t, firstArrival, data["arrivalTime"])

	// Both attempts are on the audit trail.
	rows := e.sheets.Rows(logSheet)
	require.Len(t, rows, 3)
	assert.Equal(t, "Check-in (success)", rows[1][2])
	assert.Equal(t, "Check-in (failed)", rows[2][2])
}

func TestCheckInUnknownIdentifierIs200Miss(t *testing.T) {
	e := newEnv(t, 30)

	w, resp := e.do(t, http.MethodPost, "/api/checkin",
		map[string]string{"identifier": "zzz", "sheetId": rosterSheet}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.NotContains(t, resp, "data")
}

func TestCheckInMissingFields(t *testing.T) {
	e := newEnv(t, 30)

	w, resp := e.do(t, http.MethodPost, "/api/checkin", map[string]string{"identifier": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestCheckInAdmissionLimit(t *testing.T) {
	e := newEnv(t, 2)
	body := map[string]string{"identifier": "1", "sheetId": rosterSheet}

	w, _ := e.do(t, http.MethodPost, "/api/checkin", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/checkin", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp := e.do(t, http.MethodPost, "/api/checkin", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestCheckInQuotaExceededIs429(t *testing.T) {
	e := newEnv(t, 30)
	e.sheets.FailNextMatching(rosterSheet, 1, 429, "rateLimitExceeded")

	w, resp := e.do(t, http.MethodPost, "/api/checkin",
		map[string]string{"identifier": "1", "sheetId": rosterSheet, "eventId": "spring"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, resp["success"])

	// The quota event lands on the audit trail as a system warning.
	rows := e.sheets.Rows(logSheet)
	require.Len(t, rows, 2)
	assert.Equal(t, "System warning", rows[1][2])
	assert.Equal(t, "/api/checkin", rows[1][3])
}

func TestSearchSerialPrecedence(t *testing.T) {
	e := newEnv(t, 30)

	w, resp := e.do(t, http.MethodGet, "/api/search?sheetId="+rosterSheet+"&query=7", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Dave", data[0].(map[string]any)["name"])
}

func TestAttendeesFilter(t *testing.T) {
	e := newEnv(t, 30)
	e.do(t, http.MethodPost, "/api/checkin",
		map[string]string{"identifier": "1", "sheetId": rosterSheet}, nil)

	w, resp := e.do(t, http.MethodGet, "/api/attendees?sheetId="+rosterSheet+"&filter=checked", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["total"])
}

func TestManagerRoutesRequireToken(t *testing.T) {
	e := newEnv(t, 30)
	body := map[string]string{"sheetId": rosterSheet, "identifier": "1", "eventId": "spring"}

	w, _ := e.do(t, http.MethodPost, "/api/manager/cancel-checkin", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/manager/cancel-checkin", body, bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLoginWrongPassword(t *testing.T) {
	e := newEnv(t, 30)

	w, resp := e.do(t, http.MethodPost, "/api/admin/login",
		map[string]string{"password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestManagerCancelCheckinFlow(t *testing.T) {
	e := newEnv(t, 30)
	token := e.staffToken(t)

	e.do(t, http.MethodPost, "/api/checkin",
		map[string]string{"identifier": "2", "sheetId": rosterSheet, "eventId": "spring"}, nil)

	body := map[string]string{"sheetId": rosterSheet, "identifier": "2", "eventId": "spring"}
	w, resp := e.do(t, http.MethodPost, "/api/manager/cancel-checkin", body, bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "unchecked", resp["data"].(map[string]any)["status"])
	assert.Equal(t, "", e.sheets.Cell(rosterSheet, 3, 3))

	// Cancelling again is a precondition miss with a 400.
	w, resp = e.do(t, http.MethodPost, "/api/manager/cancel-checkin", body, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])

	// The audit trail names the token's operator, not the request body.
	rows := e.sheets.Rows(logSheet)
	var ops []string
	for _, row := range rows[1:] {
		if row[2] == "Cancel check-in (success)" {
			ops = append(ops, row[1])
		}
	}
	require.Len(t, ops, 1)
	assert.Equal(t, "desk-1", ops[0])
}

func TestManagerMarkLateToggle(t *testing.T) {
	e := newEnv(t, 30)
	token := e.staffToken(t)
	body := map[string]string{"sheetId": rosterSheet, "identifier": "1", "eventId": "spring"}

	w, resp := e.do(t, http.MethodPost, "/api/manager/mark-late", body, bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "late", resp["newStatus"])
	assert.Equal(t, "LATE", e.sheets.Cell(rosterSheet, 2, 3))

	w, resp = e.do(t, http.MethodPost, "/api/manager/mark-late", body, bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unchecked", resp["newStatus"])
	assert.Equal(t, "", e.sheets.Cell(rosterSheet, 2, 3))
}

func TestEventsList(t *testing.T) {
	e := newEnv(t, 30)

	w, resp := e.do(t, http.MethodGet, "/api/events/list", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "spring", data[0].(map[string]any)["eventId"])
}

func TestEventSheets(t *testing.T) {
	e := newEnv(t, 30)
	token := e.staffToken(t)

	w, resp := e.do(t, http.MethodGet, "/api/admin/event-sheets?eventId=spring", nil, bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, rosterSheet, data["rosterSheetId"])
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/roster-abc/edit", data["rosterSheetUrl"])

	w, _ = e.do(t, http.MethodGet, "/api/admin/event-sheets?eventId=nope", nil, bearer(token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoadtestSummary(t *testing.T) {
	e := newEnv(t, 30)
	token := e.staffToken(t)

	e.do(t, http.MethodPost, "/api/checkin",
		map[string]string{"identifier": "1", "sheetId": rosterSheet, "eventId": "spring"}, nil)
	e.do(t, http.MethodPost, "/api/checkin",
		map[string]string{"identifier": "1", "sheetId": rosterSheet, "eventId": "spring"}, nil)

	w, resp := e.do(t, http.MethodGet, "/api/admin/loadtest-summary?eventId=spring", nil, bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, float64(1), data["success"])
	assert.Equal(t, float64(1), data["failed"])
}
