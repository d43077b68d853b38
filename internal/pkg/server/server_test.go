package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/eco-monitor/internal/pkg/database"
	"github.com/anicoll/eco-monitor/internal/pkg/generator"
	"github.com/anicoll/eco-monitor/internal/pkg/model"
	"github.com/anicoll/eco-monitor/pkg/hasher"
)

type MockSnapshots struct {
	mu        sync.Mutex
	gen       *generator.Generator
	latest    *model.Snapshot
	refreshes int
}

func newMockSnapshots() *MockSnapshots {
	gen := generator.New(generator.WithSeed(7))
	return &MockSnapshots{gen: gen, latest: gen.Snapshot()}
}

func (m *MockSnapshots) Latest(context.Context) *model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func (m *MockSnapshots) Refresh(context.Context) *model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	m.latest = m.gen.Snapshot()
	return m.latest
}

type MockRecorder struct {
	RecentSnapshotsFunc func(ctx context.Context, limit int) ([]model.Snapshot, error)
	limits              []int
}

func (m *MockRecorder) RecentSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error) {
	m.limits = append(m.limits, limit)
	return m.RecentSnapshotsFunc(ctx, limit)
}

func newTestServer(t *testing.T, snaps *MockSnapshots, opts ...Option) http.Handler {
	t.Helper()
	s, err := New(context.Background(), snaps, opts...)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestGetSnapshot(t *testing.T) {
	snaps := newMockSnapshots()
	h := newTestServer(t, snaps)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	got := decode[model.Snapshot](t, rec)
	assert.Equal(t, snaps.latest.ID, got.ID)
	assert.Equal(t, snaps.latest.Reading.RawADC, got.Reading.RawADC)
	assert.Len(t, got.History, generator.DefaultHistoryLength)
	assert.Len(t, got.Devices, len(model.DeviceKinds))
}

func TestGetHistory(t *testing.T) {
	tests := map[string]struct {
		query      string
		wantStatus int
		wantRows   int
	}{
		"no limit":      {query: "", wantStatus: http.StatusOK, wantRows: generator.DefaultHistoryLength},
		"limit":         {query: "?limit=5", wantStatus: http.StatusOK, wantRows: 5},
		"limit too big": {query: "?limit=100", wantStatus: http.StatusOK, wantRows: generator.DefaultHistoryLength},
		"zero":          {query: "?limit=0", wantStatus: http.StatusBadRequest},
		"not a number":  {query: "?limit=abc", wantStatus: http.StatusBadRequest},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			snaps := newMockSnapshots()
			h := newTestServer(t, snaps)

			rec := do(h, httptest.NewRequest(http.MethodGet, "/api/history"+tc.query, nil))
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			if tc.wantStatus != http.StatusOK {
				assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
				return
			}
			rows := decode[model.History](t, rec)
			require.Len(t, rows, tc.wantRows)
			last := snaps.latest.History[len(snaps.latest.History)-1]
			assert.True(t, last.Timestamp.Equal(rows[len(rows)-1].Timestamp))
		})
	}
}

func TestPostRefresh(t *testing.T) {
	snaps := newMockSnapshots()
	h := newTestServer(t, snaps)
	before := snaps.latest.ID

	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[model.Snapshot](t, rec)
	assert.NotEqual(t, before, got.ID)
	assert.Equal(t, snaps.latest.ID, got.ID)
	assert.Equal(t, 1, snaps.refreshes)
}

func TestGetRecorded(t *testing.T) {
	recorded := []model.Snapshot{{Status: model.StatusOnline}, {Status: model.StatusOffline}}

	tests := map[string]struct {
		recorder   *MockRecorder
		query      string
		wantStatus int
		wantLimit  int
	}{
		"no database": {
			wantStatus: http.StatusServiceUnavailable,
		},
		"default limit": {
			recorder: &MockRecorder{RecentSnapshotsFunc: func(context.Context, int) ([]model.Snapshot, error) {
				return recorded, nil
			}},
			wantStatus: http.StatusOK,
			wantLimit:  defaultRecordedLimit,
		},
		"explicit limit": {
			recorder: &MockRecorder{RecentSnapshotsFunc: func(context.Context, int) ([]model.Snapshot, error) {
				return recorded, nil
			}},
			query:      "?limit=2",
			wantStatus: http.StatusOK,
			wantLimit:  2,
		},
		"nil database": {
			recorder: &MockRecorder{RecentSnapshotsFunc: func(context.Context, int) ([]model.Snapshot, error) {
				return nil, database.ErrNoDatabase
			}},
			wantStatus: http.StatusServiceUnavailable,
			wantLimit:  defaultRecordedLimit,
		},
		"query failure": {
			recorder: &MockRecorder{RecentSnapshotsFunc: func(context.Context, int) ([]model.Snapshot, error) {
				return nil, errors.New("connection reset")
			}},
			wantStatus: http.StatusInternalServerError,
			wantLimit:  defaultRecordedLimit,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var opts []Option
			if tc.recorder != nil {
				opts = append(opts, WithRecorder(tc.recorder))
			}
			h := newTestServer(t, newMockSnapshots(), opts...)

			rec := do(h, httptest.NewRequest(http.MethodGet, "/api/recorded"+tc.query, nil))
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			if tc.recorder != nil {
				assert.Equal(t, []int{tc.wantLimit}, tc.recorder.limits)
			}
			if tc.wantStatus == http.StatusOK {
				assert.Len(t, decode[[]model.Snapshot](t, rec), len(recorded))
			}
		})
	}
}

func TestGetDashboard(t *testing.T) {
	snaps := newMockSnapshots()
	h := newTestServer(t, snaps, WithTitle("Greenhouse"), WithRefreshInterval(5*time.Second))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Greenhouse")
	assert.Contains(t, body, snaps.latest.Status.Label())
	assert.Contains(t, body, strconv.FormatFloat(snaps.latest.Reading.AmbientTemperature, 'f', 1, 64))
	for _, k := range model.DeviceKinds {
		assert.Contains(t, body, k.Name())
	}
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "5000")
}

func TestGetHealthAndOpenAPI(t *testing.T) {
	h := newTestServer(t, newMockSnapshots())

	rec := do(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/api/snapshot")
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("eco_refreshes_total 1"))
	})
	h := newTestServer(t, newMockSnapshots(), WithMetrics(metrics))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "eco_refreshes_total 1", rec.Body.String())
}

func TestLoginDisabled(t *testing.T) {
	h := newTestServer(t, newMockSnapshots())

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(h, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newTestAuth(t *testing.T, password string) *Authenticator {
	t.Helper()
	hash, err := hasher.HashPassword([]byte(password))
	require.NoError(t, err)
	auth, err := NewAuthenticator(hash, []byte("test-secret"), time.Hour)
	require.NoError(t, err)
	return auth
}

func TestAuthenticatedServer(t *testing.T) {
	h := newTestServer(t, newMockSnapshots(), WithAuth(newTestAuth(t, "hunter2")))

	t.Run("api without token", func(t *testing.T) {
		rec := do(h, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, ErrUnauthorized.Error(), decode[errorResponse](t, rec).Error)
	})

	t.Run("page redirects to login", func(t *testing.T) {
		rec := do(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("public paths", func(t *testing.T) {
		for _, path := range []string{"/login", "/healthz", "/api/openapi.json"} {
			rec := do(h, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := do(h, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"hunter2"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := do(h, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		login := decode[loginResponse](t, rec)
		require.NotEmpty(t, login.Token)

		req = httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
		req.Header.Set("Authorization", "Bearer "+login.Token)
		rec = do(h, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("form login sets cookie", func(t *testing.T) {
		form := url.Values{"password": {"hunter2"}}
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := do(h, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, sessionCookie, cookies[0].Name)

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		rec = do(h, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("form login failure", func(t *testing.T) {
		form := url.Values{"password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := do(h, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?error=1", rec.Header().Get("Location"))
	})
}

func TestParseLimit(t *testing.T) {
	tests := map[string]struct {
		query   string
		want    int
		wantErr bool
	}{
		"missing":  {query: "", want: 20},
		"valid":    {query: "limit=3", want: 3},
		"negative": {query: "limit=-1", wantErr: true},
		"float":    {query: "limit=1.5", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/history?"+tc.query, nil)
			got, err := parseLimit(req, 20)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLimit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
