package auditlog

import (
	"context"

	"rollcall/internal/fault"
	"rollcall/internal/sheets"
)

// Summary aggregates an event's audit trail, primarily for inspecting the
// outcome of a load test after the fact.
type Summary struct {
	Total    int            `json:"total"`
	Success  int            `json:"success"`
	Failed   int            `json:"failed"`
	ByAction map[string]int `json:"byAction"`
	First    string         `json:"first,omitempty"`
	Last     string         `json:"last,omitempty"`
}

// Summarize reads the whole log sheet for an event and counts rows by action
// label and result.
func (r *Router) Summarize(ctx context.Context, eventID string) (Summary, error) {
	cfg, err := r.cfg.Lookup(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}
	if cfg.LogSheetID == "" {
		return Summary{}, fault.New(fault.ConfigurationMissing, "This event has no log sheet configured.")
	}

	rows, err := r.store.Get(ctx, cfg.LogSheetID, "A2:G")
	if err != nil {
		return Summary{}, fault.FromRemote(err, sheets.IsQuotaError(err))
	}

	sum := Summary{ByAction: make(map[string]int)}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		sum.Total++
		if sum.First == "" {
			sum.First = row[0]
		}
		sum.Last = row[0]
		if len(row) > 2 {
			sum.ByAction[row[2]]++
		}
		if len(row) > 5 {
			switch Result(row[5]) {
			case Success:
				sum.Success++
			case Failed:
				sum.Failed++
			}
		}
	}
	return sum, nil
}
