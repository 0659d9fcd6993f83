// Package app wires the experience workflow: registration, patching under
// the edit permission rules, reports, mail and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"experiences/api/internal/archive"
	"experiences/api/internal/auth"
	"experiences/api/internal/authpw"
	"experiences/api/internal/email"
	"experiences/api/internal/experience"
	"experiences/api/internal/export"
	"experiences/api/internal/metrics"
	"experiences/api/internal/notify"
	"experiences/api/internal/permission"
	"experiences/api/internal/rbac"
	"experiences/api/internal/search"
	"experiences/api/internal/store"
)

const (
	unidentifiedUser  = "unidentified user"
	newExperienceText = "Nueva experiencia registrada"
	updatedText       = "Una experiencia ha sido actualizada"
	notificationDate  = "2006-01-02 15:04:05"
)

// ExperienceStore loads and persists the aggregate. Loads return (nil, nil)
// when the experience does not exist.
type ExperienceStore interface {
	LoadShallowByID(ctx context.Context, id int64) (*experience.Experience, error)
	LoadByID(ctx context.Context, id int64, withDetails bool) (*experience.Experience, error)
	GetDetailForm(ctx context.Context, id int64) (*experience.Experience, error)
	ListAll(ctx context.Context) ([]*experience.Experience, error)
	ListByUser(ctx context.Context, userID int64) ([]*experience.Experience, error)
	Insert(ctx context.Context, item *experience.Experience) error
	Save(ctx context.Context, item *experience.Experience) error
	SetPDFURL(ctx context.Context, id int64, url string) error
}

type RoleLookup interface {
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (store.User, error)
}

type ReportRenderer interface {
	ExperiencePDF(ctx context.Context, e *experience.Experience, createdBy string) (*export.Result, error)
}

// ReportPublisher stores a rendered report and returns a link to it.
type ReportPublisher interface {
	PublishPDF(ctx context.Context, experienceID int64, data []byte) (string, error)
}

type Mailer interface {
	SendEvaluationResult(ctx context.Context, to, userName, result string) error
	SendEditApproved(ctx context.Context, to, userName, experienceName string, expiresAt time.Time) error
}

type SearchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexExperience(ctx context.Context, e *experience.Experience) error
}

type Archive interface {
	Snapshot(e *experience.Experience, author, message string) (archive.Revision, error)
	History(experienceID int64, limit int) ([]archive.Revision, error)
}

type Authenticator interface {
	SignIn(ctx context.Context, req authpw.SignInRequest) (store.User, error)
}

// Revocations tracks signed-out token ids until they expire.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps lists the collaborators of a Service. Experiences, Permissions,
// Roles and Users are required; everything else degrades when nil.
type Deps struct {
	Experiences ExperienceStore
	Permissions *permission.Machine
	Roles       RoleLookup
	Users       UserDirectory
	Notifier    notify.Broadcaster
	Reports     ReportRenderer
	Publisher   ReportPublisher
	Mailer      Mailer
	Search      SearchIndex
	Archive     Archive
	Auth        Authenticator
	Tokens      *auth.Issuer
	Revocations Revocations
	Health      Pinger
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

type Service struct {
	experiences ExperienceStore
	permissions *permission.Machine
	roles       RoleLookup
	users       UserDirectory
	notifier    notify.Broadcaster
	reports     ReportRenderer
	publisher   ReportPublisher
	mailer      Mailer
	search      SearchIndex
	archive     Archive
	authn       Authenticator
	tokens      *auth.Issuer
	revocations Revocations
	health      Pinger
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	reportGroup singleflight.Group
	pending     sync.WaitGroup
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogBroadcaster(logger)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		experiences: deps.Experiences,
		permissions: deps.Permissions,
		roles:       deps.Roles,
		users:       deps.Users,
		notifier:    notifier,
		reports:     deps.Reports,
		publisher:   deps.Publisher,
		mailer:      deps.Mailer,
		search:      deps.Search,
		archive:     deps.Archive,
		authn:       deps.Auth,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		health:      deps.Health,
		metrics:     deps.Metrics,
		logger:      logger,
		tracer:      otel.Tracer("experiences/api/internal/app"),
		now:         clock,
	}
}

// Wait blocks until background side effects started so far have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) Ping(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	return s.health.Ping(ctx)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "app."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func persistenceError(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, action, err)
}

// RegisterExperience builds and persists a new experience, then announces
// it on the "all" channel. Indexing and archiving run after the response.
func (s *Service) RegisterExperience(ctx context.Context, req *experience.CreateRequest) (item *experience.Experience, err error) {
	ctx, span := s.startSpan(ctx, "RegisterExperience")
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("register", time.Now())

	if req == nil {
		return nil, validationError("request body is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationError("name is required")
	}
	if req.UserID <= 0 {
		return nil, validationError("userId is required")
	}

	item = experience.Build(req, s.now())
	if err := s.experiences.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	span.SetAttributes(attribute.Int64("experience.id", item.ID))
	s.metrics.IncrementRegistered()

	createdBy := s.creatorName(ctx, item.UserID)
	s.broadcast(ctx, notify.ChannelAll, notify.EventNewExperience, map[string]any{
		"title":          newExperienceText,
		"experienceName": item.Name,
		"createdBy":      createdBy,
		"date":           s.now().Format(notificationDate),
	})
	s.logger.InfoContext(ctx, "experience registered", "experience_id", item.ID, "user_id", item.UserID)

	s.afterCommit(ctx, item, createdBy, "Registro de experiencia")
	return item, nil
}

// PatchExperience merges a sparse update into a stored experience. It
// returns (false, nil) when the experience does not exist. Privileged
// actors skip the edit permission check and trigger an admin notification.
func (s *Service) PatchExperience(ctx context.Context, req *experience.PatchRequest) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "PatchExperience")
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("patch", time.Now())

	if req == nil || req.ExperienceID <= 0 {
		return false, validationError("experienceId is required")
	}
	span.SetAttributes(attribute.Int64("experience.id", req.ExperienceID), attribute.Int64("user.id", req.UserID))

	item, err := s.experiences.LoadByID(ctx, req.ExperienceID, false)
	if err != nil {
		return false, persistenceError("load experience", err)
	}
	if item == nil {
		s.metrics.ObservePatch("not_found")
		return false, nil
	}

	roles, err := s.roles.RolesForUser(ctx, req.UserID)
	if err != nil {
		return false, persistenceError("resolve roles", err)
	}
	privileged := rbac.Privileged(roles)
	span.SetAttributes(attribute.Bool("actor.privileged", privileged))

	if !privileged {
		decision, err := s.permissions.CheckEditAuthorization(ctx, req.ExperienceID)
		if err != nil {
			return false, persistenceError("check edit permission", err)
		}
		if err := decision.Err(); err != nil {
			s.metrics.ObservePatch(strings.ToLower(string(decision.Reason)))
			s.logger.InfoContext(ctx, "patch rejected", "experience_id", req.ExperienceID, "user_id", req.UserID, "reason", decision.Reason)
			return false, err
		}
	}

	experience.ApplyPatch(item, req, s.now())
	if err := s.experiences.Save(ctx, item); err != nil {
		s.metrics.ObservePatch("error")
		return false, persistenceError(fmt.Sprintf("save experience %d", item.ID), err)
	}
	s.metrics.ObservePatch("applied")
	s.logger.InfoContext(ctx, "experience patched", "experience_id", item.ID, "user_id", req.UserID, "privileged", privileged)

	if privileged {
		s.broadcast(ctx, notify.ChannelAdmins, notify.EventExperienceUpdated, map[string]any{
			"message":      updatedText,
			"experienceId": item.ID,
			"name":         item.Name,
			"updatedAt":    s.now().UTC(),
		})
	}
	s.afterCommit(ctx, item, s.creatorName(ctx, req.UserID), "Actualización de experiencia")
	return true, nil
}

// ListExperiences shows teachers only their own experiences and every
// other role the full set.
func (s *Service) ListExperiences(ctx context.Context, role rbac.Role, userID int64) ([]*experience.Experience, error) {
	var (
		items []*experience.Experience
		err   error
	)
	if rbac.OwnerScoped(role) {
		items, err = s.experiences.ListByUser(ctx, userID)
	} else {
		items, err = s.experiences.ListAll(ctx)
	}
	if err != nil {
		return nil, persistenceError("list experiences", err)
	}
	if items == nil {
		items = []*experience.Experience{}
	}
	return items, nil
}

func (s *Service) GetDetail(ctx context.Context, id int64) (*experience.Experience, error) {
	item, err := s.experiences.LoadByID(ctx, id, true)
	if err != nil {
		return nil, persistenceError("load experience", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// GetDetailForm loads the admin review projection with only active links.
func (s *Service) GetDetailForm(ctx context.Context, id int64) (*experience.Experience, error) {
	item, err := s.experiences.GetDetailForm(ctx, id)
	if err != nil {
		return nil, persistenceError("load detail form", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) RequestEdit(ctx context.Context, experienceID, userID int64) (p permission.Permission, err error) {
	ctx, span := s.startSpan(ctx, "RequestEdit", attribute.Int64("experience.id", experienceID))
	defer func() { endSpan(span, err) }()

	item, err := s.experiences.LoadShallowByID(ctx, experienceID)
	if err != nil {
		return permission.Permission{}, persistenceError("load experience", err)
	}
	if item == nil {
		return permission.Permission{}, ErrNotFound
	}
	p, err = s.permissions.RequestEdit(ctx, experienceID, userID)
	if err != nil {
		if errors.Is(err, permission.ErrAlreadyRequested) {
			return permission.Permission{}, err
		}
		return permission.Permission{}, persistenceError("request edit", err)
	}
	s.metrics.ObservePermission("requested")
	s.logger.InfoContext(ctx, "edit requested", "experience_id", experienceID, "user_id", userID)
	s.broadcast(ctx, notify.ChannelAdmins, notify.EventEditRequested, map[string]any{
		"experienceId": experienceID,
		"name":         item.Name,
		"requestedBy":  s.creatorName(ctx, userID),
	})
	return p, nil
}

// ApproveEdit opens the edit window and mails the requester. The mail is
// best effort.
func (s *Service) ApproveEdit(ctx context.Context, experienceID int64) (p permission.Permission, err error) {
	ctx, span := s.startSpan(ctx, "ApproveEdit", attribute.Int64("experience.id", experienceID))
	defer func() { endSpan(span, err) }()

	p, err = s.permissions.ApproveEdit(ctx, experienceID)
	if err != nil {
		if errors.Is(err, permission.ErrNotRequested) {
			return permission.Permission{}, err
		}
		return permission.Permission{}, persistenceError("approve edit", err)
	}
	s.metrics.ObservePermission("approved")
	s.logger.InfoContext(ctx, "edit approved", "experience_id", experienceID, "user_id", p.UserID, "expires_at", p.ExpiresAt)

	var name string
	if item, err := s.experiences.LoadShallowByID(ctx, experienceID); err == nil && item != nil {
		name = item.Name
	}
	s.broadcast(ctx, notify.ChannelAll, notify.EventEditApproved, map[string]any{
		"experienceId": experienceID,
		"name":         name,
		"userId":       p.UserID,
		"expiresAt":    p.ExpiresAt,
	})
	s.mailApproval(ctx, p, name)
	return p, nil
}

func (s *Service) mailApproval(ctx context.Context, p permission.Permission, experienceName string) {
	if s.mailer == nil || s.users == nil || p.ExpiresAt == nil {
		return
	}
	user, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil || strings.TrimSpace(user.Email) == "" {
		return
	}
	err = s.mailer.SendEditApproved(ctx, user.Email, authpw.DisplayName(user), experienceName, *p.ExpiresAt)
	if err != nil && !errors.Is(err, email.ErrNotConfigured) {
		s.metrics.IncrementSideEffectFailure("mail")
		s.logger.WarnContext(ctx, "edit approval email failed", "experience_id", p.ExperienceID, "error", err)
	}
}

func (s *Service) ListPermissions(ctx context.Context) ([]permission.Listing, error) {
	items, err := s.permissions.List(ctx)
	if err != nil {
		return nil, persistenceError("list permissions", err)
	}
	if items == nil {
		items = []permission.Listing{}
	}
	return items, nil
}

// Search runs a full-text query. It never fails; an unavailable backend
// yields an empty response.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// Revisions lists archived snapshots of an experience, newest first.
func (s *Service) Revisions(ctx context.Context, id int64, limit int) ([]archive.Revision, error) {
	item, err := s.experiences.LoadShallowByID(ctx, id)
	if err != nil {
		return nil, persistenceError("load experience", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if s.archive == nil {
		return []archive.Revision{}, nil
	}
	revisions, err := s.archive.History(id, limit)
	if err != nil {
		return nil, fmt.Errorf("read revisions: %w", err)
	}
	return revisions, nil
}

// creatorName resolves the display name used in notifications: first name,
// then username, then a fixed placeholder.
func (s *Service) creatorName(ctx context.Context, userID int64) string {
	if s.users == nil || userID <= 0 {
		return unidentifiedUser
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return unidentifiedUser
	}
	if name := strings.TrimSpace(user.FirstName); name != "" {
		return name
	}
	if name := strings.TrimSpace(user.Username); name != "" {
		return name
	}
	return unidentifiedUser
}

func (s *Service) broadcast(ctx context.Context, channel, event string, payload any) {
	if err := s.notifier.Broadcast(ctx, channel, event, payload); err != nil {
		s.metrics.IncrementNotificationFailure(event)
		s.logger.WarnContext(ctx, "notification failed",
			"channel", channel,
			"event", event,
			"error", fmt.Errorf("%w: %w", ErrNotification, err),
		)
	}
}

// afterCommit indexes and archives a saved experience in the background.
// Failures are logged and counted; the mutation has already succeeded.
func (s *Service) afterCommit(ctx context.Context, item *experience.Experience, author, message string) {
	if s.search == nil && s.archive == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		var g errgroup.Group
		if s.search != nil {
			g.Go(func() error {
				if err := s.search.IndexExperience(ctx, item); err != nil {
					s.sideEffectFailed(ctx, "index", item.ID, err)
				}
				return nil
			})
		}
		if s.archive != nil {
			g.Go(func() error {
				if _, err := s.archive.Snapshot(item, author, message); err != nil {
					s.sideEffectFailed(ctx, "archive", item.ID, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (s *Service) sideEffectFailed(ctx context.Context, effect string, experienceID int64, err error) {
	s.metrics.IncrementSideEffectFailure(effect)
	s.logger.WarnContext(ctx, "post-commit side effect failed", "effect", effect, "experience_id", experienceID, "error", err)
}
