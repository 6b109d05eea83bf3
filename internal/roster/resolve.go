package roster

import "strings"

// resolveRow finds the data row an action should target. An exact serial
// match always wins and is taken alone; only when no serial matches does the
// lookup fall back to a case-insensitive substring match on the name. Among
// name matches the first row in sheet order is used.
func resolveRow(rows [][]string, l layout, identifier string) (int, bool) {
	if identifier == "" {
		return 0, false
	}
	for i, row := range rows {
		if cellAt(row, l.serialCol) == identifier {
			return i, true
		}
	}
	for i, row := range rows {
		if containsFold(cellAt(row, l.nameCol), identifier) {
			return i, true
		}
	}
	return 0, false
}

// matchRows returns every row a search query matches, honoring the same
// precedence: an exact serial hit is returned alone even when the query would
// also land as a substring elsewhere.
func matchRows(rows [][]string, l layout, query string) []int {
	for i, row := range rows {
		if cellAt(row, l.serialCol) == query {
			return []int{i}
		}
	}
	var hits []int
	for i, row := range rows {
		if containsFold(cellAt(row, l.serialCol), query) || containsFold(cellAt(row, l.nameCol), query) {
			hits = append(hits, i)
		}
	}
	return hits
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
