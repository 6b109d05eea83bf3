package sheets_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/sheets"
	"rollcall/internal/sheets/sheetstest"
)

func TestGetReturnsRows(t *testing.T) {
	srv := sheetstest.New()
	defer srv.Close()
	srv.Set("roster", [][]string{
		{"Serial", "Name", "Arrival Time", "Status"},
		{"1", "Alice", "", ""},
		{"2", "Bob", "2025/01/01 10:00:00", "TRUE"},
	})

	client := sheets.New(srv.URL, sheets.StaticToken("test-token"))
	rows, err := client.Get(context.Background(), "roster", "A2:D")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "Alice"}, rows[0])
	assert.Equal(t, []string{"2", "Bob", "2025/01/01 10:00:00", "TRUE"}, rows[1])
}

func TestUpdateWritesScopedCells(t *testing.T) {
	srv := sheetstest.New()
	defer srv.Close()
	srv.Set("roster", [][]string{
		{"Serial", "Name", "Arrival Time", "Status"},
		{"1", "Alice", "", ""},
	})

	client := sheets.New(srv.URL, nil)
	err := client.Update(context.Background(), "roster", "C2:D2", [][]string{{"2025/01/01 09:30:00", "TRUE"}})
	require.NoError(t, err)

	assert.Equal(t, "2025/01/01 09:30:00", srv.Cell("roster", 2, 2))
	assert.Equal(t, "TRUE", srv.Cell("roster", 2, 3))
	// Neighboring columns stay untouched.
	assert.Equal(t, "Alice", srv.Cell("roster", 2, 1))
}

func TestBatchUpdateAppliesAllRanges(t *testing.T) {
	srv := sheetstest.New()
	defer srv.Close()
	srv.Set("roster", [][]string{
		{"h"},
		{"a"},
		{"b"},
		{"c"},
	})

	client := sheets.New(srv.URL, nil)
	err := client.BatchUpdate(context.Background(), "roster", []sheets.ValueRange{
		{Range: "U2", Values: [][]string{{"TRUE"}}},
		{Range: "U4", Values: [][]string{{"TRUE"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "TRUE", srv.Cell("roster", 2, 20))
	assert.Equal(t, "", srv.Cell("roster", 3, 20))
	assert.Equal(t, "TRUE", srv.Cell("roster", 4, 20))
}

func TestAppendAddsRow(t *testing.T) {
	srv := sheetstest.New()
	defer srv.Close()
	srv.Set("log", [][]string{
		{"Time", "Operator", "Action", "Identifier", "Name", "Result", "Detail"},
	})

	client := sheets.New(srv.URL, nil)
	row := []string{"2025/01/01 10:00:00", "amy", "Check-in (success)", "1", "Alice", "SUCCESS", "-"}
	require.NoError(t, client.Append(context.Background(), "log", "A1:G1", [][]string{row}))

	rows := srv.Rows("log")
	require.Len(t, rows, 2)
	assert.Equal(t, row, rows[1])
}

func TestAPIErrorCarriesReason(t *testing.T) {
	srv := sheetstest.New()
	defer srv.Close()
	srv.FailNext(1, http.StatusTooManyRequests, "rateLimitExceeded")

	client := sheets.New(srv.URL, nil)
	_, err := client.Get(context.Background(), "roster", "A2:D")
	require.Error(t, err)

	assert.True(t, sheets.IsQuotaError(err))
}

func TestNonQuotaErrorIsNotQuota(t *testing.T) {
	srv := sheetstest.New()
	defer srv.Close()
	srv.FailNext(1, http.StatusInternalServerError, "backendError")

	client := sheets.New(srv.URL, nil)
	_, err := client.Get(context.Background(), "roster", "A2:D")
	require.Error(t, err)
	assert.False(t, sheets.IsQuotaError(err))
}
