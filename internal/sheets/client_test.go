package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/dailypoll/backend/config"
	"github.com/dailypoll/backend/internal/models"
)

type fakeSheet struct {
	mu       sync.Mutex
	rows     [][]interface{}
	appended []string // request paths
	bodies   []map[string]interface{}
	fail     bool
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		http.Error(w, `{"error":{"code":503,"message":"unavailable"}}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          "Questions!A2:C",
			"majorDimension": "ROWS",
			"values":         f.rows,
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		f.appended = append(f.appended, r.URL.Path)
		f.bodies = append(f.bodies, body)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRows":1}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeSheet) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), config.SheetsConfig{
		Enabled:        true,
		SpreadsheetID:  "sheet-1",
		QuestionsRange: "Questions!A2:C",
		LogRange:       "Logs!A1",
	}, nil, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	return c
}

func TestGetQuestions(t *testing.T) {
	f := &fakeSheet{rows: [][]interface{}{
		{"貓", "狗", "pets"},
		{"茶", "咖啡"},
		{"only-a"},
		{" ", "b"},
	}}
	c := newTestClient(t, f)

	qs, err := c.GetQuestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Question{
		{A: "貓", B: "狗", Tag: "pets"},
		{A: "茶", B: "咖啡"},
	}, qs)
}

func TestGetQuestionsError(t *testing.T) {
	c := newTestClient(t, &fakeSheet{fail: true})
	_, err := c.GetQuestions(context.Background())
	assert.Error(t, err)
}

func TestAddQuestionAndAppendEvent(t *testing.T) {
	f := &fakeSheet{}
	c := newTestClient(t, f)

	require.NoError(t, c.AddQuestion(context.Background(), models.Question{A: "山", B: "海", Tag: "trip"}))
	require.NoError(t, c.AppendEvent(context.Background(), models.Event{
		Type:   models.EventVote,
		PollID: 7,
		Choice: models.ChoiceA,
	}))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.appended, 2)
	assert.Contains(t, f.appended[0], "Questions")
	assert.Contains(t, f.appended[1], "Logs")

	values := f.bodies[0]["values"].([]interface{})
	assert.Equal(t, []interface{}{"山", "海", "trip"}, values[0])

	logRow := f.bodies[1]["values"].([]interface{})[0].([]interface{})
	assert.Equal(t, "vote", logRow[0])
	assert.Equal(t, float64(7), logRow[2])
	assert.Equal(t, "A", logRow[7])
}
