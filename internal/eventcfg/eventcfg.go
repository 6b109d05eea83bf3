// Package eventcfg reads the event configuration sheet: one row per event
// mapping an event id to its roster sheet, its audit-log sheet, and its
// track. The admin password lives on the same spreadsheet.
package eventcfg

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"rollcall/internal/fault"
	"rollcall/internal/roster"
	"rollcall/internal/sheets"
)

// Config sheet columns: A name, B roster sheet link, C event id, D note,
// E log sheet link, F track (optional, defaults to adult).
const configRange = "A2:F"

// The admin password cell on the config spreadsheet.
const passwordRange = "Info!A2:A2"

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9\-_]+)`)

// Config is one event's resolved configuration.
type Config struct {
	EventID       string       `json:"eventId"`
	Name          string       `json:"name"`
	Note          string       `json:"note,omitempty"`
	RosterSheetID string       `json:"rosterSheetId"`
	LogSheetID    string       `json:"logSheetId,omitempty"`
	Track         roster.Track `json:"track"`
}

// Store looks up event configuration.
type Store struct {
	client  *sheets.Client
	sheetID string
	log     *zap.Logger
}

// NewStore builds a Store over the given config spreadsheet. An empty sheet
// id is tolerated at construction; lookups then fail with a
// configuration-missing outcome.
func NewStore(client *sheets.Client, configSheetID string, logger *zap.Logger) *Store {
	return &Store{client: client, sheetID: configSheetID, log: logger}
}

// List returns every configured event that has an event id.
func (s *Store) List(ctx context.Context) ([]Config, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	var out []Config
	for _, row := range rows {
		cfg := parseRow(row)
		if cfg.EventID == "" {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Lookup resolves one event by id.
func (s *Store) Lookup(ctx context.Context, eventID string) (Config, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return Config{}, err
	}
	for _, row := range rows {
		cfg := parseRow(row)
		if cfg.EventID != "" && cfg.EventID == eventID {
			return cfg, nil
		}
	}
	return Config{}, fault.New(fault.NotFound, "No configuration found for this event.")
}

// AdminPassword reads the staff password cell. A blank cell returns a
// configuration-missing outcome.
func (s *Store) AdminPassword(ctx context.Context) (string, error) {
	if s.sheetID == "" {
		return "", fault.New(fault.ConfigurationMissing, "Event configuration sheet is not set.")
	}
	rows, err := s.client.Get(ctx, s.sheetID, passwordRange)
	if err != nil {
		return "", fault.FromRemote(err, sheets.IsQuotaError(err))
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] == "" {
		return "", fault.New(fault.ConfigurationMissing, "Admin password has not been set on the configuration sheet.")
	}
	return rows[0][0], nil
}

func (s *Store) rows(ctx context.Context) ([][]string, error) {
	if s.sheetID == "" {
		return nil, fault.New(fault.ConfigurationMissing, "Event configuration sheet is not set.")
	}
	rows, err := s.client.Get(ctx, s.sheetID, configRange)
	if err != nil {
		return nil, fault.FromRemote(err, sheets.IsQuotaError(err))
	}
	return rows, nil
}

func parseRow(row []string) Config {
	cell := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	track := roster.Adult
	if strings.EqualFold(cell(5), string(roster.Kids)) {
		track = roster.Kids
	}
	return Config{
		Name:          cell(0),
		RosterSheetID: ExtractSheetID(cell(1)),
		EventID:       cell(2),
		Note:          cell(3),
		LogSheetID:    ExtractSheetID(cell(4)),
		Track:         track,
	}
}

// ExtractSheetID pulls the spreadsheet id out of a full sheet URL. A value
// that is not a URL is assumed to already be an id.
func ExtractSheetID(link string) string {
	if link == "" {
		return ""
	}
	if m := sheetIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if strings.Contains(link, "/") {
		return ""
	}
	return link
}
