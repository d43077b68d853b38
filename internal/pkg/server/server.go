package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/database"
	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const (
	defaultRecordedLimit = 50
	maxRecordedLimit     = 500
	maxBodySize          = 1 << 16
)

var ErrInvalidLimit = errors.New("limit must be a positive integer")

type snapshotService interface {
	Latest(ctx context.Context) *model.Snapshot
	Refresh(ctx context.Context) *model.Snapshot
}

type recorder interface {
	RecentSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error)
}

// Option configures the server.
type Option func(*server)

type server struct {
	snapshots       snapshotService
	recorder        recorder
	hub             *Hub
	auth            *Authenticator
	metrics         http.Handler
	title           string
	refreshInterval time.Duration
	doc             *openapi3.T
	router          routers.Router
	logger          *zap.Logger
}

func WithRecorder(r recorder) Option {
	return func(s *server) {
		s.recorder = r
	}
}

func WithHub(h *Hub) Option {
	return func(s *server) {
		s.hub = h
	}
}

func WithAuth(a *Authenticator) Option {
	return func(s *server) {
		s.auth = a
	}
}

func WithMetrics(h http.Handler) Option {
	return func(s *server) {
		s.metrics = h
	}
}

func WithTitle(title string) Option {
	return func(s *server) {
		s.title = title
	}
}

func WithRefreshInterval(d time.Duration) Option {
	return func(s *server) {
		s.refreshInterval = d
	}
}

func New(ctx context.Context, snapshots snapshotService, opts ...Option) (*server, error) {
	doc, router, err := loadOpenAPI(ctx)
	if err != nil {
		return nil, fmt.Errorf("invalid api description: %w", err)
	}
	s := &server{
		snapshots:       snapshots,
		title:           "Eco ESP32 Monitoring System",
		refreshInterval: 5 * time.Second,
		doc:             doc,
		router:          router,
		logger:          zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	return s, nil
}

// Handler builds the routed handler with every middleware applied.
func (s *server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.GetDashboard).Methods(http.MethodGet)
	r.HandleFunc("/login", s.GetLogin).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.GetWebsocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.GetHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/snapshot", s.GetSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/history", s.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.PostRefresh).Methods(http.MethodPost)
	api.HandleFunc("/recorded", s.GetRecorded).Methods(http.MethodGet)
	api.HandleFunc("/login", s.PostLogin).Methods(http.MethodPost)
	api.HandleFunc("/openapi.json", s.GetOpenAPI).Methods(http.MethodGet)

	var h http.Handler = validationMiddleware(s.router)(r)
	if s.auth != nil {
		h = s.auth.Middleware(h)
	}
	h = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	return LoggingMiddleware(h)
}

func (s *server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) GetWebsocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, s.snapshots.Latest(r.Context()))
}

func (s *server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshots.Latest(r.Context()))
}

func (s *server) GetHistory(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Latest(r.Context())
	limit, err := parseLimit(r, len(snap.History))
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.History.Tail(limit))
}

func (s *server) PostRefresh(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Refresh(r.Context())
	s.logger.Info("manual refresh", zap.Stringer("snapshot", snap.ID))
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) GetRecorded(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		handleError(w, http.StatusServiceUnavailable, database.ErrNoDatabase)
		return
	}
	limit, err := parseLimit(r, defaultRecordedLimit)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	snapshots, err := s.recorder.RecentSnapshots(r.Context(), min(limit, maxRecordedLimit))
	if err != nil {
		if errors.Is(err, database.ErrNoDatabase) {
			handleError(w, http.StatusServiceUnavailable, err)
			return
		}
		s.logger.Error("failed to read recorded snapshots", zap.Error(err))
		handleError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *server) PostLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		handleError(w, http.StatusNotFound, errors.New("authentication is not enabled"))
		return
	}
	isForm := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

	var req loginRequest
	if isForm {
		if err := r.ParseForm(); err != nil {
			handleError(w, http.StatusBadRequest, err)
			return
		}
		req.Password = r.PostForm.Get("password")
	} else {
		payload, err := unmarshalPayload[loginRequest](r)
		if err != nil {
			handleError(w, http.StatusBadRequest, err)
			return
		}
		req = *payload
	}

	token, expires, err := s.auth.Login(req.Password)
	if err != nil {
		s.logger.Warn("failed login attempt", zap.String("remote", r.RemoteAddr))
		if isForm {
			http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
			return
		}
		handleError(w, http.StatusUnauthorized, err)
		return
	}

	http.SetCookie(w, s.auth.sessionCookie(token, expires))
	if isForm {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

func (s *server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.doc)
}

// parseLimit reads the optional limit query parameter.
func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
	}
	return limit, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func handleError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("recovered from panic", zap.String("panic", fmt.Sprint(v...)))
}
