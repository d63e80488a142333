package main

import (
	"embed"
	"encoding/gob"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"triviareview"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionName = "review-session"

// flash is a one-shot message shown after a redirect.
type flash struct {
	Level string // info, warn or error
	Text  string
}

func init() {
	gob.Register(flash{})
}

// Server exposes one review session. Every handler takes mu, so browser
// tabs see the session as a single user would.
type Server struct {
	mu        sync.Mutex
	rv        *triviareview.Reviewer
	store     *sessions.CookieStore
	templates map[string]*template.Template
	logger    *zap.Logger
}

// NewServer parses the page templates and wraps rv.
func NewServer(rv *triviareview.Reviewer, key []byte, logger *zap.Logger) (*Server, error) {
	funcMap := template.FuncMap{
		"join": strings.Join,
	}
	templates := make(map[string]*template.Template)
	for _, name := range []string{"review", "stats", "labels"} {
		t, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		templates[name] = t
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{Path: "/", MaxAge: 86400, HttpOnly: true, SameSite: http.SameSiteLaxMode}
	return &Server{rv: rv, store: store, templates: templates, logger: logger}, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleReview)
	mux.HandleFunc("POST /assign", s.handleAssign)
	mux.HandleFunc("POST /undo", s.handleUndo)
	mux.HandleFunc("POST /redo", s.handleRedo)
	mux.HandleFunc("POST /skip", s.handleSkip)
	mux.HandleFunc("POST /nav", s.handleNav)
	mux.HandleFunc("POST /filter", s.handleFilter)
	mux.HandleFunc("POST /edit", s.handleEdit)
	mux.HandleFunc("POST /save", s.handleSave)
	mux.HandleFunc("POST /backup", s.handleBackup)
	mux.HandleFunc("POST /rebuild", s.handleRebuild)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /labels", s.handleLabels)
	mux.HandleFunc("POST /labels", s.handleSetLabel)
	return mux
}

// Close ends the review session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rv.Close()
}

type labelItem struct {
	Code  int
	Label string
}

type reviewPage struct {
	Flashes  []flash
	Path     string
	Position int
	Total    int
	Assigned int
	Filter   string
	Filters  []string
	Search   string
	Question *triviareview.Question
	Index    int
	Code     *labelItem
	Labels   []labelItem
	CanUndo  bool
	CanRedo  bool
}

func (s *Server) labels() []labelItem {
	items := make([]labelItem, 0, triviareview.MaxCode-triviareview.MinCode+1)
	for code := triviareview.MinCode; code <= triviareview.MaxCode; code++ {
		items = append(items, labelItem{Code: code, Label: s.rv.Label(code)})
	}
	return items
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.rv.View()
	page := reviewPage{
		Flashes:  s.flashes(w, r),
		Path:     s.rv.Path(),
		Total:    v.Total(),
		Assigned: v.AssignedCount(),
		Filter:   string(v.Mode()),
		Filters:  []string{string(triviareview.FilterAll), string(triviareview.FilterUnassigned), string(triviareview.FilterAssigned)},
		Search:   v.Search(),
		Labels:   s.labels(),
		CanUndo:  s.rv.Tracker().CanUndo(),
		CanRedo:  s.rv.Tracker().CanRedo(),
	}
	if idx, q, ok := s.rv.Current(); ok {
		page.Position = v.Position() + 1
		page.Question = q
		page.Index = idx
		if code, ok := q.Code(); ok {
			page.Code = &labelItem{Code: code, Label: s.rv.Label(code)}
		}
	}
	s.render(w, "review", page)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.FormValue("code"))
	if err != nil {
		s.redirect(w, r, flash{"error", "invalid code selection"})
		return
	}
	s.mu.Lock()
	err = s.rv.Assign(code)
	label := s.rv.Label(code)
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Assigned "+label))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.rv.Undo()
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Undone"))
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.rv.Redo()
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Redone"))
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.rv.Skip()
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Skipped"))
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	switch r.FormValue("dir") {
	case "next":
		s.rv.Next()
	case "prev":
		s.rv.Prev()
	default:
		err = s.rv.View().JumpToText(r.FormValue("n"))
	}
	if err != nil {
		s.redirect(w, r, flash{"error", err.Error()})
		return
	}
	s.redirect(w, r)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	mode, err := triviareview.ParseFilter(r.FormValue("mode"))
	if err != nil {
		s.redirect(w, r, flash{"error", err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rv.SetFilter(mode)
	s.rv.SetSearch(strings.TrimSpace(r.FormValue("search")))
	if s.rv.View().Empty() {
		s.redirect(w, r, flash{"warn", "No questions match"})
		return
	}
	s.redirect(w, r)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		s.redirect(w, r, flash{"error", "invalid question"})
		return
	}
	e := triviareview.QuestionEdit{
		Question:   r.FormValue("question"),
		Answer:     r.FormValue("answer"),
		Options:    strings.Split(r.FormValue("options"), "\n"),
		Category:   r.FormValue("category"),
		Difficulty: r.FormValue("difficulty"),
	}
	s.mu.Lock()
	err = s.rv.Edit(index, e)
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Question updated"))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.rv.Save()
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Progress saved"))
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	path, err := s.rv.Backup()
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Backup created: "+path))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.rv.Rebuild()
	s.mu.Unlock()
	s.redirect(w, r, outcome(err, "Code files rebuilt"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	if err := s.rv.Stats().WriteText(&b, s.rv.Label); err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		http.Error(w, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}
	s.render(w, "stats", map[string]any{"Report": b.String()})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render(w, "labels", map[string]any{
		"Flashes": s.flashes(w, r),
		"Labels":  s.labels(),
	})
}

func (s *Server) handleSetLabel(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.FormValue("code"))
	if err != nil {
		s.redirectTo(w, r, "/labels", flash{"error", "invalid code"})
		return
	}
	s.mu.Lock()
	err = s.rv.SetLabel(code, r.FormValue("label"))
	s.mu.Unlock()
	s.redirectTo(w, r, "/labels", outcome(err, "Label saved"))
}

// outcome is the flash for an operation result. A FileError leaves the
// in-memory change in place, so it is shown as a warning.
func outcome(err error, ok string) flash {
	var fileErr *triviareview.FileError
	switch {
	case err == nil:
		return flash{"info", ok}
	case errors.As(err, &fileErr):
		return flash{"warn", ok + " (code file not updated: " + err.Error() + ")"}
	}
	return flash{"error", err.Error()}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, msgs ...flash) {
	s.redirectTo(w, r, "/", msgs...)
}

func (s *Server) redirectTo(w http.ResponseWriter, r *http.Request, to string, msgs ...flash) {
	if len(msgs) > 0 {
		session, _ := s.store.Get(r, sessionName)
		for _, m := range msgs {
			session.AddFlash(m)
		}
		if err := session.Save(r, w); err != nil {
			s.logger.Warn("session save failed", zap.Error(err))
		}
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (s *Server) flashes(w http.ResponseWriter, r *http.Request) []flash {
	session, _ := s.store.Get(r, sessionName)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("session save failed", zap.Error(err))
	}
	out := make([]flash, 0, len(raw))
	for _, f := range raw {
		if f, ok := f.(flash); ok {
			out = append(out, f)
		}
	}
	return out
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
