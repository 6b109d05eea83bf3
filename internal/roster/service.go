package roster

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/fault"
	"rollcall/internal/sheets"
)

const timestampFormat = "2006/01/02 15:04:05"

// Messages returned with classified outcomes.
const (
	msgNotFound          = "No attendee matches this serial number or name. Please check and try again."
	msgAlreadyCheckedIn  = "This serial number or name has already checked in."
	msgCheckinSuccess    = "Check-in successful!"
	msgCancelledBlocked  = "This attendee is marked as not attending; restore them before checking in."
	msgNothingToCancel   = "This attendee has not checked in, so there is nothing to undo."
	msgCheckedInBlocked  = "This attendee has already checked in and cannot be marked as not attending."
	msgLateBlocked       = "Late marking is only possible before check-in or cancellation."
	msgKidsOnlyAction    = "This action is only available on the child-track roster."
	msgAdultOnlyAction   = "This action is only available on the adult-track roster."
	msgContactNoGuardian = "marked without family propagation: no guardian column on this roster"
)

// Header keywords that identify the guardian grouping column on kids sheets.
var guardianHeaderKeywords = []string{"guardian", "parent", "phone"}

// Service performs roster operations against the remote sheet. Every
// state-changing operation re-reads the sheet; the snapshot cache serves only
// the search and list paths of the kids track.
type Service struct {
	store *sheets.Client
	cache *snapshotCache
	log   *zap.Logger
	loc   *time.Location
	now   func() time.Time
}

// NewService builds a Service. The timezone names the event-local zone used
// for arrival timestamps; an unknown name falls back to the process zone.
func NewService(store *sheets.Client, cacheTTL time.Duration, timezone string, logger *zap.Logger) *Service {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown timezone, using local", zap.String("timezone", timezone), zap.Error(err))
		loc = time.Local
	}
	now := time.Now
	return &Service{
		store: store,
		cache: newSnapshotCache(cacheTTL, now),
		log:   logger,
		loc:   loc,
		now:   now,
	}
}

// snapshot reads the header row and data rows of a roster sheet. When
// useCache is set, a snapshot younger than the cache TTL is reused.
func (s *Service) snapshot(ctx context.Context, sheetID string, track Track, useCache bool) ([]string, [][]string, error) {
	l := layoutFor(track)
	if useCache {
		if rows, ok := s.cache.get(sheetID); ok {
			return splitHeader(rows)
		}
	}
	rows, err := s.store.Get(ctx, sheetID, l.headerRange())
	if err != nil {
		return nil, nil, fault.FromRemote(err, sheets.IsQuotaError(err))
	}
	if useCache {
		s.cache.put(sheetID, rows)
	}
	return splitHeader(rows)
}

func splitHeader(rows [][]string) ([]string, [][]string, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// List returns all records, optionally narrowed to checked or unchecked.
func (s *Service) List(ctx context.Context, sheetID string, track Track, filter string, useCache bool) ([]Record, error) {
	header, rows, err := s.snapshot(ctx, sheetID, track, useCache)
	if err != nil {
		return nil, err
	}
	l := layoutFor(track)
	var out []Record
	for i, row := range rows {
		rec := l.record(header, row, i)
		switch filter {
		case "checked":
			if rec.Status != CheckedIn {
				continue
			}
		case "unchecked":
			if rec.Status == CheckedIn {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Search returns records matching the query under the identifier-precedence
// policy: an exact serial match is returned alone.
func (s *Service) Search(ctx context.Context, sheetID string, track Track, query string, useCache bool) ([]Record, error) {
	header, rows, err := s.snapshot(ctx, sheetID, track, useCache)
	if err != nil {
		return nil, err
	}
	l := layoutFor(track)
	var out []Record
	for _, i := range matchRows(rows, l, query) {
		out = append(out, l.record(header, rows[i], i))
	}
	return out, nil
}

// CheckIn transitions an attendee to CheckedIn and stamps the arrival time.
// A repeat call is an idempotent read: the existing record comes back under
// an AlreadyProcessed outcome and the stored timestamp is never touched.
func (s *Service) CheckIn(ctx context.Context, sheetID string, track Track, identifier string) (Record, error) {
	header, rows, err := s.snapshot(ctx, sheetID, track, false)
	if err != nil {
		return Record{}, err
	}
	l := layoutFor(track)
	idx, ok := resolveRow(rows, l, identifier)
	if !ok {
		return Record{}, fault.New(fault.NotFound, msgNotFound)
	}
	rec := l.record(header, rows[idx], idx)

	switch rec.Status {
	case CheckedIn:
		return rec, fault.New(fault.AlreadyProcessed, msgAlreadyCheckedIn)
	case Cancelled:
		return rec, fault.New(fault.PreconditionFailed, msgCancelledBlocked)
	}

	arrival := s.now().In(s.loc).Format(timestampFormat)
	if err := s.writeMark(ctx, sheetID, l, rec.rowNumber, arrival, CheckedIn); err != nil {
		return Record{}, err
	}
	rec.ArrivalTime = arrival
	rec.Status = CheckedIn
	return rec, nil
}

// CancelCheckIn restores a checked-in or cancelled attendee to Unchecked and
// clears the arrival time.
func (s *Service) CancelCheckIn(ctx context.Context, sheetID string, track Track, identifier string) (Record, error) {
	header, rows, err := s.snapshot(ctx, sheetID, track, false)
	if err != nil {
		return Record{}, err
	}
	l := layoutFor(track)
	idx, ok := resolveRow(rows, l, identifier)
	if !ok {
		return Record{}, fault.New(fault.NotFound, msgNotFound)
	}
	rec := l.record(header, rows[idx], idx)

	if rec.Status != CheckedIn && rec.Status != Cancelled {
		return rec, fault.New(fault.PreconditionFailed, msgNothingToCancel)
	}

	if err := s.writeMark(ctx, sheetID, l, rec.rowNumber, "", Unchecked); err != nil {
		return Record{}, err
	}
	rec.ArrivalTime = ""
	rec.Status = Unchecked
	return rec, nil
}

// MarkCancelled marks an attendee as not attending. Checked-in attendees
// must be restored first.
func (s *Service) MarkCancelled(ctx context.Context, sheetID string, track Track, identifier string) (Record, error) {
	header, rows, err := s.snapshot(ctx, sheetID, track, false)
	if err != nil {
		return Record{}, err
	}
	l := layoutFor(track)
	idx, ok := resolveRow(rows, l, identifier)
	if !ok {
		return Record{}, fault.New(fault.NotFound, msgNotFound)
	}
	rec := l.record(header, rows[idx], idx)

	if rec.Status == CheckedIn {
		return rec, fault.New(fault.PreconditionFailed, msgCheckedInBlocked)
	}
	if rec.Status == Cancelled {
		return rec, nil
	}

	if err := s.writeMark(ctx, sheetID, l, rec.rowNumber, "", Cancelled); err != nil {
		return Record{}, err
	}
	rec.ArrivalTime = ""
	rec.Status = Cancelled
	return rec, nil
}

// ToggleLate flips an adult-track attendee between Unchecked and Late.
func (s *Service) ToggleLate(ctx context.Context, sheetID string, track Track, identifier string) (Record, error) {
	if track != Adult {
		return Record{}, fault.New(fault.Validation, msgAdultOnlyAction)
	}
	header, rows, err := s.snapshot(ctx, sheetID, track, false)
	if err != nil {
		return Record{}, err
	}
	l := layoutFor(track)
	idx, ok := resolveRow(rows, l, identifier)
	if !ok {
		return Record{}, fault.New(fault.NotFound, msgNotFound)
	}
	rec := l.record(header, rows[idx], idx)

	if rec.Status == CheckedIn || rec.Status == Cancelled {
		return rec, fault.New(fault.PreconditionFailed, msgLateBlocked)
	}

	next := Late
	if rec.Status == Late {
		next = Unchecked
	}
	if err := s.writeMark(ctx, sheetID, l, rec.rowNumber, "", next); err != nil {
		return Record{}, err
	}
	rec.ArrivalTime = ""
	rec.Status = next
	return rec, nil
}

// ContactResult reports the outcome of a contact toggle, including how many
// sibling rows the family propagation touched.
type ContactResult struct {
	Record    Record
	Contacted bool
	Updated   int
	Note      string
}

// ToggleContact flips the child-track contact flag. When the record shares a
// guardian key with siblings, the flip propagates to every sibling in the
// agreeing direction only, through one batched write.
func (s *Service) ToggleContact(ctx context.Context, sheetID string, track Track, identifier string) (ContactResult, error) {
	if track != Kids {
		return ContactResult{}, fault.New(fault.Validation, msgKidsOnlyAction)
	}
	header, rows, err := s.snapshot(ctx, sheetID, track, false)
	if err != nil {
		return ContactResult{}, err
	}
	l := layoutFor(track)

	guardianCol := findGuardianColumn(header)
	if guardianCol >= 0 {
		fillDown(rows, guardianCol)
	}

	idx, ok := resolveRow(rows, l, identifier)
	if !ok {
		return ContactResult{}, fault.New(fault.NotFound, msgNotFound)
	}
	rec := l.record(header, rows[idx], idx)

	// Turning on forces not-yet-contacted siblings on; turning off forces
	// contacted siblings off. Siblings already agreeing are left alone.
	newMarker := markerCheckedIn
	if rec.Contacted {
		newMarker = ""
	}

	updates := []sheets.ValueRange{{
		Range:  l.contactCell(rec.rowNumber),
		Values: [][]string{{newMarker}},
	}}
	guardianKey := ""
	if guardianCol >= 0 {
		guardianKey = cellAt(rows[idx], guardianCol)
	}
	if guardianKey != "" {
		for i, row := range rows {
			if i == idx || cellAt(row, guardianCol) != guardianKey {
				continue
			}
			contacted := cellAt(row, l.contactCol) == markerCheckedIn
			if (newMarker == markerCheckedIn && !contacted) || (newMarker == "" && contacted) {
				updates = append(updates, sheets.ValueRange{
					Range:  l.contactCell(i + 2),
					Values: [][]string{{newMarker}},
				})
			}
		}
	}

	if err := s.store.BatchUpdate(ctx, sheetID, updates); err != nil {
		return ContactResult{}, fault.FromRemote(err, sheets.IsQuotaError(err))
	}

	rec.Contacted = newMarker == markerCheckedIn
	res := ContactResult{Record: rec, Contacted: rec.Contacted, Updated: len(updates)}
	if guardianCol < 0 {
		res.Note = msgContactNoGuardian
	}
	return res, nil
}

// EnsureHeader writes the adult-track header row when the sheet has none.
func (s *Service) EnsureHeader(ctx context.Context, sheetID string) error {
	rows, err := s.store.Get(ctx, sheetID, "A1:D1")
	if err != nil {
		return fault.FromRemote(err, sheets.IsQuotaError(err))
	}
	if len(rows) > 0 {
		return nil
	}
	header := [][]string{{"Serial", "Name", "Arrival Time", "Status"}}
	if err := s.store.Update(ctx, sheetID, "A1:D1", header); err != nil {
		return fault.FromRemote(err, sheets.IsQuotaError(err))
	}
	return nil
}

// writeMark updates only the arrival/status cell pair of one row.
func (s *Service) writeMark(ctx context.Context, sheetID string, l layout, rowNumber int, arrival string, status Status) error {
	values := [][]string{l.markValues(arrival, statusMarker(status))}
	if err := s.store.Update(ctx, sheetID, l.markRange(rowNumber), values); err != nil {
		return fault.FromRemote(err, sheets.IsQuotaError(err))
	}
	return nil
}

// findGuardianColumn scans the header for the guardian grouping column.
func findGuardianColumn(header []string) int {
	for i, label := range header {
		for _, kw := range guardianHeaderKeywords {
			if containsFold(label, kw) {
				return i
			}
		}
	}
	return -1
}

// fillDown propagates the last non-empty value downward, compensating for
// merged guardian cells that only carry a value in the first sibling row.
func fillDown(rows [][]string, col int) {
	last := ""
	for i := range rows {
		cur := cellAt(rows[i], col)
		if cur != "" {
			last = cur
			continue
		}
		if last == "" {
			continue
		}
		for len(rows[i]) <= col {
			rows[i] = append(rows[i], "")
		}
		rows[i][col] = last
	}
}
