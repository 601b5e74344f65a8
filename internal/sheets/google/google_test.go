package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "finbits/internal/sheets"
)

type recordedCall struct {
	method string
	path   string
	query  string
	body   map[string]any
}

// fakeSheets serves the subset of the Sheets values API the client uses.
func fakeSheets(t *testing.T, headerFilled bool) (*gsheet.Service, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		calls = append(calls, call)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":append"):
			_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Ledger!A7:G7","updatedRows":1}}`))
		case r.Method == http.MethodGet:
			if headerFilled {
				_, _ = w.Write([]byte(`{"range":"Ledger!A1:G1","values":[["Recorded At"]]}`))
			} else {
				_, _ = w.Write([]byte(`{"range":"Ledger!A1:G1"}`))
			}
		case r.Method == http.MethodPut:
			_, _ = w.Write([]byte(`{"updatedRange":"Ledger!A1:G1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return svc, &calls
}

func sampleRow() ports.LedgerRow {
	return ports.LedgerRow{
		EventID:     "evt-1",
		RecordedAt:  time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		Owner:       "alice",
		BudgetID:    "b1",
		BudgetLabel: "March 2025",
		Category:    "Food",
		Amount:      "120.00",
		Remaining:   "880.00",
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(nil, "", "Ledger", nil)
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background(), "sheet-id", "Ledger", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestAppendSpending(t *testing.T) {
	svc, calls := fakeSheets(t, true)
	c, err := New(svc, "sheet-id", "Ledger", nil)
	require.NoError(t, err)

	ref, err := c.AppendSpending(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A7:G7", ref)
	require.Len(t, *calls, 1)

	call := (*calls)[0]
	assert.Contains(t, call.path, "/spreadsheets/sheet-id/values/Ledger!A:G:append")
	assert.Contains(t, call.query, "valueInputOption=USER_ENTERED")
	assert.Contains(t, call.query, "insertDataOption=INSERT_ROWS")

	values := call.body["values"].([]any)[0].([]any)
	assert.Equal(t, "2025-03-14T09:00:00Z", values[0])
	assert.Equal(t, "Food", values[4])
	assert.Equal(t, "120.00", values[5])
}

func TestAppendSpending_Invalid(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	_, err := c.AppendSpending(context.Background(), ports.LedgerRow{})
	assert.Error(t, err)

	_, err = c.AppendSpending(context.Background(), sampleRow())
	assert.EqualError(t, err, "sheets service not initialized")
}

func TestEnsureHeader(t *testing.T) {
	svc, calls := fakeSheets(t, false)
	c, _ := New(svc, "sheet-id", "Ledger", nil)
	require.NoError(t, c.EnsureHeader(context.Background()))
	require.Len(t, *calls, 2, "expected read then write")
	assert.Equal(t, http.MethodPut, (*calls)[1].method)

	svc, calls = fakeSheets(t, true)
	c, _ = New(svc, "sheet-id", "Ledger", nil)
	require.NoError(t, c.EnsureHeader(context.Background()))
	assert.Len(t, *calls, 1, "header present: expected a single read")
}
