package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/loqalabs/whispnote/internal/app"
	"github.com/loqalabs/whispnote/internal/prefs"
	"github.com/loqalabs/whispnote/internal/stt"
)

type RouterOptions struct {
	Metrics http.Handler
	Ready   func() bool
	Logger  *slog.Logger
}

// Handler serves the HTTP API over a controller.
type Handler struct {
	controller *app.Controller
	opts       RouterOptions
	log        *slog.Logger
}

func NewRouter(controller *app.Controller, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{
		controller: controller,
		opts:       opts,
		log:        opts.Logger.With(slog.String("component", "http")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.listNotes)
			r.Post("/", h.createNote)
			r.Delete("/{id}", h.deleteNote)
			r.Post("/{id}/edit", h.editNote)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Post("/toggle", h.sessionAction(h.controller.Toggle))
			r.Post("/start", h.sessionAction(h.controller.Start))
			r.Post("/stop", h.sessionAction(func(ctx context.Context) error {
				_, _, err := h.controller.Stop(ctx)
				return err
			}))
			r.Post("/save", h.sessionAction(func(ctx context.Context) error {
				_, _, err := h.controller.Save(ctx)
				return err
			}))
		})
		r.Route("/prefs", func(r chi.Router) {
			r.Get("/", h.getPrefs)
			r.Put("/theme", h.putTheme)
			r.Post("/theme/toggle", h.toggleTheme)
		})
		r.Get("/stream", h.stream)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	if h.opts.Ready == nil || h.opts.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (h *Handler) listNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Notes())
}

type createNoteRequest struct {
	Text string `json:"text"`
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	note, created, err := h.controller.Add(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !created {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if _, err := h.controller.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) editNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	found, err := h.controller.Edit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *Handler) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *Handler) sessionAction(action func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(r.Context()); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, h.controller.Snapshot())
	}
}

type prefsResponse struct {
	Theme prefs.Theme `json:"theme"`
}

func (h *Handler) getPrefs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, prefsResponse{Theme: h.controller.Theme()})
}

func (h *Handler) putTheme(w http.ResponseWriter, r *http.Request) {
	var req prefsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Theme != prefs.ThemeLight && req.Theme != prefs.ThemeDark {
		writeError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	if err := h.controller.SetTheme(r.Context(), req.Theme); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefsResponse{Theme: h.controller.Theme()})
}

func (h *Handler) toggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.controller.ToggleTheme(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefsResponse{Theme: theme})
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return 0, false
	}
	return id, true
}

// statusFor maps recognition failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stt.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, stt.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, stt.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
