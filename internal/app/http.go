package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"experiences/api/internal/experience"
	"experiences/api/internal/metrics"
	"experiences/api/internal/rbac"
	"experiences/api/internal/search"
)

const patchAppliedMessage = "Experiencia actualizada correctamente"

type ServerOptions struct {
	CORSOrigin string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Gatherer backs /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	Stream   Subscriber
	// EditRequestRate and EditRequestBurst bound request-edit calls per
	// client address. A non-positive rate disables the limit.
	EditRequestRate  float64
	EditRequestBurst int
}

type HTTPServer struct {
	service     *Service
	logger      *slog.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	stream      Subscriber
	corsOrigin  string
	editLimiter *ipLimiter
}

func NewHTTPServer(service *Service, opts ServerOptions) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := opts.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	server := &HTTPServer{
		service:    service,
		logger:     logger,
		metrics:    opts.Metrics,
		gatherer:   opts.Gatherer,
		stream:     opts.Stream,
		corsOrigin: corsOrigin,
	}
	if opts.EditRequestRate > 0 {
		server.editLimiter = newIPLimiter(opts.EditRequestRate, opts.EditRequestBurst)
	}
	return server
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RealIP)
	r.Use(withRequestLog(s.logger, s.metrics, s.corsOrigin))
	r.Use(chimid.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/api/session/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth(true))
		r.Get("/api/notifications/stream", s.handleStream)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth(false))

		r.Get("/api/session", s.handleSession)
		r.Post("/api/session/logout", s.handleLogout)
		r.Get("/api/search", s.handleSearch)

		r.Route("/api/experiences", func(r chi.Router) {
			r.Get("/", s.handleListExperiences)
			r.With(s.requireAction(rbac.ActionRegister)).Post("/register", s.handleRegister)
			r.Patch("/patch", s.handlePatch)
			r.With(s.requireAction(rbac.ActionListPermissions)).Get("/permissions", s.handleListPermissions)
			r.With(s.requireAction(rbac.ActionDetailForm)).Get("/detail/form/{id}", s.handleDetailForm)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/detail", s.handleDetail)
				r.Get("/generate-pdf", s.handleGenerateReport)
				r.Get("/revisions", s.handleRevisions)
				r.With(s.requireAction(rbac.ActionApproveEdit)).Post("/approve-edit", s.handleApproveEdit)
				r.With(s.requireAction(rbac.ActionSendResult)).Post("/result-email", s.handleResultEmail)

				requestEdit := r.With(s.requireAction(rbac.ActionRequestEdit))
				if s.editLimiter != nil {
					requestEdit = requestEdit.With(s.limitEditRequests)
				}
				requestEdit.Post("/request-edit", s.handleRequestEdit)
			})
		})
	})

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        claims.UserID,
		"userName":      claims.Name,
		"roles":         claims.Roles,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	if err := s.service.Logout(r.Context(), claims); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListExperiences(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	items, err := s.service.ListExperiences(r.Context(), actorRole(claims.Roles), claims.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req experience.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	// Only privileged callers may register on behalf of someone else.
	if req.UserID <= 0 || !rbac.Privileged(claims.Roles) {
		req.UserID = claims.UserID
	}
	item, err := s.service.RegisterExperience(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req experience.PatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	req.UserID = claims.UserID

	ok, err := s.service.PatchExperience(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Experience not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": patchAppliedMessage})
}

func (s *HTTPServer) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.GetDetail(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDetailForm(w http.ResponseWriter, r *http.Request) {
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.GetDetailForm(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	link, err := s.service.GenerateReport(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": link})
}

func (s *HTTPServer) handleRequestEdit(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.service.RequestEdit(r.Context(), id, claims.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *HTTPServer) handleApproveEdit(w http.ResponseWriter, r *http.Request) {
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.service.ApproveEdit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListPermissions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleResultEmail(w http.ResponseWriter, r *http.Request) {
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Email    string `json:"email"`
		UserName string `json:"userName"`
		Result   string `json:"result"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.SendEvaluationResult(r.Context(), id, body.Email, body.UserName, body.Result); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := experienceID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	revisions, err := s.service.Revisions(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revisions)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	q := search.Query{
		Text:   strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	if rbac.OwnerScoped(actorRole(claims.Roles)) {
		q.OwnerID = claims.UserID
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

// fail maps err onto a JSON error response. Server-side failures are logged
// with the request id.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, code, message, details)
}

// actorRole picks the role that governs list visibility. Any role that sees
// every experience wins over an owner-scoped one.
func actorRole(roleNames []string) rbac.Role {
	chosen := rbac.RoleUnknown
	for _, name := range roleNames {
		role := rbac.Parse(name)
		if role == rbac.RoleUnknown {
			continue
		}
		if !rbac.OwnerScoped(role) {
			return role
		}
		chosen = role
	}
	return chosen
}

func experienceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError("experience id must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
