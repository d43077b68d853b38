package server

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

// tableRows is how many of the newest history rows the table shows.
const tableRows = 10

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"fmt1":     func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	"clock":    func(t time.Time) string { return t.Format("15:04") },
	"datetime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	"add":      func(a, b float64) float64 { return a + b },
	"sub":      func(a, b float64) float64 { return a - b },
}).ParseFS(templateFS, "templates/*.html.tmpl"))

type dashboardPage struct {
	Title          string
	Snapshot       *model.Snapshot
	Chart          chart
	Table          model.History
	DeviceNames    []string
	RefreshSeconds int
	RefreshMillis  int64
}

type loginPage struct {
	Title  string
	Failed bool
}

func (s *server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Latest(r.Context())
	page := dashboardPage{
		Title:    s.title,
		Snapshot: snap,
		Chart:    newChart(snap.History),
		Table:    snap.History.Tail(tableRows),
		DeviceNames: lo.Map(model.DeviceKinds, func(k model.DeviceKind, _ int) string {
			return k.Name()
		}),
		RefreshSeconds: int(s.refreshInterval / time.Second),
		RefreshMillis:  s.refreshInterval.Milliseconds(),
	}
	s.render(w, "dashboard.html.tmpl", page)
}

func (s *server) GetLogin(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html.tmpl", loginPage{
		Title:  s.title,
		Failed: r.URL.Query().Get("error") != "",
	})
}

func (s *server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render page", zap.String("template", name), zap.Error(err))
	}
}
