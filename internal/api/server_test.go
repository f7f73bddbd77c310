package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/metrics"
	"github.com/pbaille/crowd/internal/pda"
	"github.com/pbaille/crowd/internal/session"
	"github.com/pbaille/crowd/internal/store"
)

var (
	testProgram = domain.Address{0x0b, 0xad, 0xc0, 0xde, 9}
	alice       = domain.Address{0xa1, 0x1c, 0xe}
)

func newTestServer(t *testing.T, owner domain.Address) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger, err := store.New(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), testProgram)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	reg := prometheus.NewRegistry()
	c, err := session.New(ledger, testProgram, owner,
		session.WithLogger(logger),
		session.WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	srv := httptest.NewServer(New(c, reg, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_CreateAnswerList(t *testing.T) {
	srv := newTestServer(t, alice)

	var created struct {
		Question string `json:"question"`
		Stats    string `json:"stats"`
		Receipt  struct {
			Signature string `json:"signature"`
		} `json:"receipt"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/questions", `{"content":"Is it raining?","threshold":3}`, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.Receipt.Signature)

	status = doJSON(t, http.MethodPost, srv.URL+"/questions/"+created.Question+"/answers", `{"value":4}`, nil)
	require.Equal(t, http.StatusCreated, status)

	var snap struct {
		Seq       uint64 `json:"seq"`
		Questions []struct {
			Address   string `json:"address"`
			Content   string `json:"content"`
			Threshold uint32 `json:"threshold"`
			Stats     struct {
				AnswersCount uint64   `json:"answers_count"`
				Average      *float64 `json:"average"`
			} `json:"stats"`
		} `json:"questions"`
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/questions", "", &snap)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(1), snap.Seq)
	require.Len(t, snap.Questions, 1)

	q := snap.Questions[0]
	assert.Equal(t, created.Question, q.Address)
	assert.Equal(t, "Is it raining?", q.Content)
	assert.Equal(t, uint64(1), q.Stats.AnswersCount)
	require.NotNil(t, q.Stats.Average)
	assert.Equal(t, 4.0, *q.Stats.Average)
}

func TestServer_ErrorStatuses(t *testing.T) {
	srv := newTestServer(t, alice)

	status := doJSON(t, http.MethodPost, srv.URL+"/questions", `{"content":"Is it raining?","threshold":1}`, nil)
	require.Equal(t, http.StatusCreated, status)

	pair, err := pda.DerivePair("Never asked", alice, testProgram)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "blank content", method: http.MethodPost, path: "/questions", body: `{"content":"  ","threshold":1}`, want: http.StatusBadRequest},
		{name: "zero threshold", method: http.MethodPost, path: "/questions", body: `{"content":"Why?","threshold":0}`, want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/questions", body: `{`, want: http.StatusBadRequest},
		{name: "duplicate", method: http.MethodPost, path: "/questions", body: `{"content":"Is it raining?","threshold":1}`, want: http.StatusConflict},
		{name: "bad address", method: http.MethodPost, path: "/questions/0OIl/answers", body: `{"value":1}`, want: http.StatusBadRequest},
		{name: "missing value", method: http.MethodPost, path: "/questions/" + pair.Question.String() + "/answers", body: `{}`, want: http.StatusBadRequest},
		{name: "unknown question", method: http.MethodPost, path: "/questions/" + pair.Question.String() + "/answers", body: `{"value":1}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			status := doJSON(t, tt.method, srv.URL+tt.path, tt.body, &body)
			assert.Equal(t, tt.want, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServer_ReadOnlyRejectsWrites(t *testing.T) {
	srv := newTestServer(t, domain.Address{})

	status := doJSON(t, http.MethodPost, srv.URL+"/questions", `{"content":"Is it raining?","threshold":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_Derive(t *testing.T) {
	srv := newTestServer(t, alice)

	want, err := pda.DerivePair("Is it raining?", alice, testProgram)
	require.NoError(t, err)

	var got pda.Pair
	status := doJSON(t, http.MethodGet, srv.URL+"/derive?content=Is+it+raining%3F", "", &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, want, got)

	status = doJSON(t, http.MethodGet, srv.URL+"/derive?content=x&owner="+domain.Address{}.String(), "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, alice)

	var health map[string]string
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", "", &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, testProgram.String(), health["program"])

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/questions", "", nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `crowd_boundary_calls_total{op="fetch",outcome="ok"} 1`)
}
