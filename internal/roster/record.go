// Package roster models attendee rows in the remote roster sheet: the
// track-specific column layouts, the attendance lifecycle, and the
// operations staff and attendees perform against them.
package roster

import "fmt"

// Track selects which physical column layout a roster sheet uses.
type Track string

const (
	Adult Track = "adult"
	Kids  Track = "kids"
)

// Status is the attendance lifecycle state of a record.
type Status string

const (
	Unchecked Status = "unchecked"
	CheckedIn Status = "checked_in"
	Cancelled Status = "cancelled"
	Late      Status = "late" // adult track only
)

// On-sheet status cell markers. The empty cell means Unchecked.
const (
	markerCheckedIn = "TRUE"
	markerCancelled = "CANCELLED"
	markerLate      = "LATE"
)

func parseStatus(cell string) Status {
	switch cell {
	case markerCheckedIn:
		return CheckedIn
	case markerCancelled:
		return Cancelled
	case markerLate:
		return Late
	default:
		return Unchecked
	}
}

func statusMarker(s Status) string {
	switch s {
	case CheckedIn:
		return markerCheckedIn
	case Cancelled:
		return markerCancelled
	case Late:
		return markerLate
	default:
		return ""
	}
}

// Field is one passthrough display column: header label plus cell value.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Record is the logical attendee row, independent of track layout.
type Record struct {
	Serial       string  `json:"serial"`
	Name         string  `json:"name"`
	ArrivalTime  string  `json:"arrivalTime"`
	Status       Status  `json:"status"`
	ContactGroup string  `json:"contactGroup,omitempty"`
	Contacted    bool    `json:"contacted,omitempty"`
	Extra        []Field `json:"extra,omitempty"`

	// rowNumber is the 1-based on-sheet row (header is row 1).
	rowNumber int
}

// layout is the fixed positional contract of one track. Indexes are 0-based
// into a data row; the header occupies sheet row 1 and data begins at row 2.
type layout struct {
	track      Track
	lastColumn string // rightmost column the track uses

	serialCol  int
	nameCol    int
	arrivalCol int
	statusCol  int
	contactCol int // -1 when the track has no contact flag
	extraFrom  int // first passthrough column
}

var layouts = map[Track]layout{
	Adult: {
		track:      Adult,
		lastColumn: "Z",
		serialCol:  0,
		nameCol:    1,
		arrivalCol: 2,
		statusCol:  3,
		contactCol: -1,
		extraFrom:  4,
	},
	Kids: {
		track:      Kids,
		lastColumn: "U",
		statusCol:  0,
		arrivalCol: 1,
		serialCol:  4,
		nameCol:    5,
		contactCol: 20,
		extraFrom:  6,
	},
}

func layoutFor(track Track) layout {
	if l, ok := layouts[track]; ok {
		return l
	}
	return layouts[Adult]
}

// headerRange covers the header and every data row in the track's columns.
func (l layout) headerRange() string { return "A1:" + l.lastColumn }

// dataRange skips the header.
func (l layout) dataRange() string { return "A2:" + l.lastColumn }

// markRange addresses the two cells holding arrival time and status for the
// given on-sheet row. The pair is contiguous on both tracks; everything else
// in the row is left untouched by lifecycle writes.
func (l layout) markRange(rowNumber int) string {
	first, last := l.arrivalCol, l.statusCol
	if first > last {
		first, last = last, first
	}
	return fmt.Sprintf("%s%d:%s%d", columnLetter(first), rowNumber, columnLetter(last), rowNumber)
}

// markValues orders (arrival, status marker) to match markRange.
func (l layout) markValues(arrival, marker string) []string {
	if l.statusCol < l.arrivalCol {
		return []string{marker, arrival}
	}
	return []string{arrival, marker}
}

// contactCell addresses the contact flag cell for the given on-sheet row.
func (l layout) contactCell(rowNumber int) string {
	return fmt.Sprintf("%s%d", columnLetter(l.contactCol), rowNumber)
}

// record maps one data row (0-based slice index) to the logical shape.
func (l layout) record(header, row []string, index int) Record {
	rec := Record{
		Serial:      cellAt(row, l.serialCol),
		Name:        cellAt(row, l.nameCol),
		ArrivalTime: cellAt(row, l.arrivalCol),
		Status:      parseStatus(cellAt(row, l.statusCol)),
		rowNumber:   index + 2,
	}
	if l.contactCol >= 0 {
		rec.Contacted = cellAt(row, l.contactCol) == markerCheckedIn
	}
	for i := l.extraFrom; i < len(row); i++ {
		if i == l.contactCol {
			continue
		}
		label := cellAt(header, i)
		if label == "" && row[i] == "" {
			continue
		}
		if l.track == Adult && containsFold(label, "group") {
			rec.ContactGroup = row[i]
			continue
		}
		rec.Extra = append(rec.Extra, Field{Label: label, Value: row[i]})
	}
	return rec
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// columnLetter converts a 0-based column index to the A1-notation letter.
func columnLetter(i int) string {
	letter := ""
	i++
	for i > 0 {
		i--
		letter = string(rune('A'+i%26)) + letter
		i /= 26
	}
	return letter
}
