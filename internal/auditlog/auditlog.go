// Package auditlog routes every state-changing action to the event's
// dedicated log sheet. Logging is strictly best-effort: a failed append is
// diagnosed and queued for retry but never changes the primary response.
package auditlog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/eventcfg"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/sheets"
)

const timestampFormat = "2006/01/02 15:04:05"

// Result of the logged action.
type Result string

const (
	Success Result = "SUCCESS"
	Failed  Result = "FAILED"
)

// Action is a code from the closed action vocabulary. Unrecognized codes are
// ignored rather than given a fabricated label.
type Action string

const (
	Checkin              Action = "checkin"
	CheckinFailed        Action = "checkin_failed"
	ManagerCheckin       Action = "manager_checkin"
	ManagerCheckinFailed Action = "manager_checkin_failed"
	CancelCheckin        Action = "cancel_checkin"
	CancelCheckinFailed  Action = "cancel_checkin_failed"
	MarkCancelled        Action = "mark_cancelled"
	MarkCancelledFailed  Action = "mark_cancelled_failed"
	MarkLate             Action = "mark_late"
	MarkLateFailed       Action = "mark_late_failed"
	ToggleContact        Action = "toggle_contact"
	ToggleContactFailed  Action = "toggle_contact_failed"
	AdminLogin           Action = "admin_login"
	SystemError          Action = "system_error"
	SystemWarning        Action = "system_warning"
)

var actionLabels = map[Action]string{
	Checkin:              "Check-in (success)",
	CheckinFailed:        "Check-in (failed)",
	ManagerCheckin:       "Check-in by staff (success)",
	ManagerCheckinFailed: "Check-in by staff (failed)",
	CancelCheckin:        "Cancel check-in (success)",
	CancelCheckinFailed:  "Cancel check-in (failed)",
	MarkCancelled:        "Mark absent (success)",
	MarkCancelledFailed:  "Mark absent (failed)",
	MarkLate:             "Mark late (success)",
	MarkLateFailed:       "Mark late (failed)",
	ToggleContact:        "Toggle contact (success)",
	ToggleContactFailed:  "Toggle contact (failed)",
	AdminLogin:           "Admin login (success)",
	SystemError:          "System error",
	SystemWarning:        "System warning",
}

// Failure maps a success action code to its failure counterpart.
func (a Action) Failure() Action {
	switch a {
	case Checkin:
		return CheckinFailed
	case ManagerCheckin:
		return ManagerCheckinFailed
	case CancelCheckin:
		return CancelCheckinFailed
	case MarkCancelled:
		return MarkCancelledFailed
	case MarkLate:
		return MarkLateFailed
	case ToggleContact:
		return ToggleContactFailed
	default:
		return a
	}
}

// Entry is one audit record before formatting.
type Entry struct {
	EventID    string
	Action     Action
	Identifier string
	Name       string
	Result     Result
	Detail     string
	Operator   string
}

// Router resolves an event's log sheet and appends audit rows to it.
type Router struct {
	store   *sheets.Client
	cfg     *eventcfg.Store
	retries queue.Queue // nil disables retry queueing
	log     *zap.Logger
	loc     *time.Location
	now     func() time.Time

	ensured sync.Map // log sheet id -> header verified
}

// NewRouter builds a Router. retries may be nil.
func NewRouter(store *sheets.Client, cfg *eventcfg.Store, retries queue.Queue, timezone string, logger *zap.Logger) *Router {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.Local
	}
	return &Router{
		store:   store,
		cfg:     cfg,
		retries: retries,
		log:     logger,
		loc:     loc,
		now:     time.Now,
	}
}

// Log appends one audit row for the entry's event. It never returns an
// error: failures are logged to process diagnostics, counted, and queued for
// retry. An event without a configured log sheet is a silent no-op.
func (r *Router) Log(ctx context.Context, e Entry) {
	if e.EventID == "" {
		return
	}
	label, ok := actionLabels[e.Action]
	if !ok {
		r.log.Warn("audit: unrecognized action code ignored",
			zap.String("action", string(e.Action)), zap.String("event_id", e.EventID))
		return
	}

	cfg, err := r.cfg.Lookup(ctx, e.EventID)
	if err != nil || cfg.LogSheetID == "" {
		r.log.Debug("audit: no log destination for event",
			zap.String("event_id", e.EventID), zap.Error(err))
		return
	}

	row := r.formatRow(e, label)
	if err := r.append(ctx, cfg.LogSheetID, row); err != nil {
		metrics.AuditAppendFailures.Inc()
		r.log.Error("audit: append failed",
			zap.String("event_id", e.EventID),
			zap.String("log_sheet", cfg.LogSheetID),
			zap.Error(err))
		r.queueRetry(ctx, cfg.LogSheetID, row)
	}
}

// Append writes one already-formatted row, ensuring the header first. Used
// by Log and by the retry worker.
func (r *Router) Append(ctx context.Context, logSheetID string, row []string) error {
	return r.append(ctx, logSheetID, row)
}

func (r *Router) append(ctx context.Context, logSheetID string, row []string) error {
	if err := r.ensureHeader(ctx, logSheetID); err != nil {
		return err
	}
	return r.store.Append(ctx, logSheetID, "A1:G1", [][]string{row})
}

// ensureHeader writes the 7-column header once per destination.
func (r *Router) ensureHeader(ctx context.Context, logSheetID string) error {
	if _, done := r.ensured.Load(logSheetID); done {
		return nil
	}
	rows, err := r.store.Get(ctx, logSheetID, "A1:G1")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		header := [][]string{{"Time", "Operator", "Action", "Identifier", "Name", "Result", "Detail"}}
		if err := r.store.Update(ctx, logSheetID, "A1:G1", header); err != nil {
			return err
		}
	}
	r.ensured.Store(logSheetID, struct{}{})
	return nil
}

func (r *Router) formatRow(e Entry, label string) []string {
	return []string{
		r.now().In(r.loc).Format(timestampFormat),
		placeholder(e.Operator),
		label,
		placeholder(e.Identifier),
		placeholder(e.Name),
		string(e.Result),
		placeholder(e.Detail),
	}
}

func (r *Router) queueRetry(ctx context.Context, logSheetID string, row []string) {
	if r.retries == nil {
		return
	}
	msg := queue.Message{LogSheetID: logSheetID, Row: row, Attempts: 1}
	if err := r.retries.Publish(ctx, msg); err != nil {
		r.log.Warn("audit: retry queue publish failed", zap.Error(err))
	}
}

func placeholder(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
