// Package sheetstest provides an in-memory fake of the spreadsheet values
// API for tests: a grid per spreadsheet (and per tab), the range subset of
// the real API the client uses, and fault injection for quota errors.
package sheetstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Server is a fake values API over httptest.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	grids     map[string][][]string
	fail      int
	status    int
	reason    string
	failMatch string
}

// New starts a fake API server. Grids are keyed by spreadsheet id, or by
// "id!Tab" for ranges addressing a named tab.
func New() *Server {
	s := &Server{grids: make(map[string][][]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Set replaces a grid.
func (s *Server) Set(key string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[key] = cloneRows(rows)
}

// Rows returns a copy of a grid.
func (s *Server) Rows(key string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.grids[key])
}

// Cell returns one cell by 1-based row and 0-based column, or "".
func (s *Server) Cell(key string, row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := s.grids[key]
	if row < 1 || row > len(grid) || col >= len(grid[row-1]) {
		return ""
	}
	return grid[row-1][col]
}

// FailNext makes the next n requests fail with the given status and reason.
func (s *Server) FailNext(n, status int, reason string) {
	s.FailNextMatching("", n, status, reason)
}

// FailNextMatching fails the next n requests whose path contains match.
func (s *Server) FailNextMatching(match string, n, status int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = n
	s.status = status
	s.reason = reason
	s.failMatch = match
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.fail > 0 && (s.failMatch == "" || strings.Contains(r.URL.Path, s.failMatch)) {
		s.fail--
		status, reason := s.status, s.reason
		s.mu.Unlock()
		writeError(w, status, reason)
		return
	}
	s.mu.Unlock()

	// Paths: /v4/spreadsheets/{id}/values/{range}[:append] or
	// /v4/spreadsheets/{id}/values:batchUpdate
	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	id, rest, ok := strings.Cut(path, "/values")
	if !ok {
		if strings.HasSuffix(path, "/values:batchUpdate") {
			s.batchUpdate(w, r, strings.TrimSuffix(path, "/values:batchUpdate"))
			return
		}
		http.NotFound(w, r)
		return
	}
	if rest == ":batchUpdate" {
		s.batchUpdate(w, r, id)
		return
	}
	rangeSpec := strings.TrimPrefix(rest, "/")
	if spec, okAppend := strings.CutSuffix(rangeSpec, ":append"); okAppend {
		s.append(w, r, id, spec)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.get(w, id, rangeSpec)
	case http.MethodPut:
		s.update(w, r, id, rangeSpec)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) get(w http.ResponseWriter, id, rangeSpec string) {
	key, rng := s.resolve(id, rangeSpec)
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := s.grids[key]

	var values [][]string
	for rowNum := rng.startRow; rowNum <= len(grid); rowNum++ {
		if rng.endRow > 0 && rowNum > rng.endRow {
			break
		}
		row := grid[rowNum-1]
		var cells []string
		for col := rng.startCol; col <= rng.endCol && col < len(row); col++ {
			cells = append(cells, row[col])
		}
		values = append(values, trimTrailing(cells))
	}
	// The real API omits trailing empty rows.
	for len(values) > 0 && len(values[len(values)-1]) == 0 {
		values = values[:len(values)-1]
	}
	resp := map[string]any{"range": rangeSpec}
	if len(values) > 0 {
		resp["values"] = values
	}
	writeJSON(w, resp)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, id, rangeSpec string) {
	var body struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest")
		return
	}
	key, rng := s.resolve(id, rangeSpec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(key, rng, body.Values)
	writeJSON(w, map[string]any{"updatedRange": rangeSpec})
}

func (s *Server) batchUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Data []struct {
			Range  string     `json:"range"`
			Values [][]string `json:"values"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range body.Data {
		key, rng := s.resolve(id, d.Range)
		s.apply(key, rng, d.Values)
	}
	writeJSON(w, map[string]any{"totalUpdatedCells": len(body.Data)})
}

func (s *Server) append(w http.ResponseWriter, r *http.Request, id, rangeSpec string) {
	var body struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "badRequest")
		return
	}
	key, _ := s.resolve(id, rangeSpec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[key] = append(s.grids[key], cloneRows(body.Values)...)
	writeJSON(w, map[string]any{"updates": map[string]any{"updatedRows": len(body.Values)}})
}

// apply writes values into the grid, growing it as needed.
func (s *Server) apply(key string, rng cellRange, values [][]string) {
	grid := s.grids[key]
	for i, row := range values {
		rowNum := rng.startRow + i
		for len(grid) < rowNum {
			grid = append(grid, nil)
		}
		for j, cell := range row {
			col := rng.startCol + j
			for len(grid[rowNum-1]) <= col {
				grid[rowNum-1] = append(grid[rowNum-1], "")
			}
			grid[rowNum-1][col] = cell
		}
	}
	s.grids[key] = grid
}

type cellRange struct {
	startRow, endRow int // 1-based; endRow 0 means unbounded
	startCol, endCol int // 0-based inclusive
}

func (s *Server) resolve(id, rangeSpec string) (string, cellRange) {
	key := id
	if tab, rest, ok := strings.Cut(rangeSpec, "!"); ok {
		key = id + "!" + tab
		rangeSpec = rest
	}
	return key, parseRange(rangeSpec)
}

func parseRange(spec string) cellRange {
	first, second, hasEnd := strings.Cut(spec, ":")
	startCol, startRow := parseCell(first)
	rng := cellRange{startRow: startRow, startCol: startCol, endCol: startCol, endRow: startRow}
	if hasEnd {
		endCol, endRow := parseCell(second)
		rng.endCol = endCol
		rng.endRow = endRow
	}
	if rng.startRow == 0 {
		rng.startRow = 1
	}
	return rng
}

// parseCell splits "C12" into column index 2 and row 12; a bare column like
// "D" yields row 0 (unbounded).
func parseCell(cell string) (col, row int) {
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	col--
	if i < len(cell) {
		row, _ = strconv.Atoi(cell[i:])
	}
	return col, row
}

func trimTrailing(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"injected failure","status":"ERROR","errors":[{"reason":%q}]}}`, status, reason)
}
