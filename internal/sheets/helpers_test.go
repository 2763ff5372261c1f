package sheets

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client pointing at the given httptest server.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	return NewClient(url, http.DefaultClient, StaticToken("test-token"), slog.Default())
}

// recordedRequest is a captured request with its body already read.
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// recorder captures every request a fake server receives.
type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (rec *recorder) record(t *testing.T, r *http.Request) recordedRequest {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	rr := recordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	}

	rec.mu.Lock()
	rec.reqs = append(rec.reqs, rr)
	rec.mu.Unlock()

	return rr
}

// filter returns recorded requests with the given method whose path ends with suffix.
func (rec *recorder) filter(method, suffix string) []recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	var out []recordedRequest

	for _, r := range rec.reqs {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}

	return out
}

// sheetJSON renders a GET /sheets/{id} response with the given row IDs.
func sheetJSON(t *testing.T, id int64, rowIDs ...int64) string {
	t.Helper()

	rows := make([]map[string]any, 0, len(rowIDs))
	for i, rid := range rowIDs {
		rows = append(rows, map[string]any{
			"id":        rid,
			"rowNumber": i + 1,
			"cells":     []map[string]any{{"columnId": 11, "value": fmt.Sprintf("v%d", rid)}},
		})
	}

	data, err := json.Marshal(map[string]any{
		"id":            id,
		"name":          fmt.Sprintf("sheet-%d", id),
		"totalRowCount": len(rowIDs),
		"columns":       []map[string]any{{"id": 11, "title": "Name", "type": "TEXT_NUMBER", "index": 0, "primary": true}},
		"rows":          rows,
	})
	require.NoError(t, err)

	return string(data)
}

// seqIDs returns n sequential row IDs starting at first.
func seqIDs(first int64, n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = first + int64(i)
	}

	return ids
}

const successJSON = `{"message":"SUCCESS","resultCode":0}`
