package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"experiences/api/internal/archive"
	"experiences/api/internal/experience"
	"experiences/api/internal/export"
	"experiences/api/internal/metrics"
	"experiences/api/internal/permission"
	"experiences/api/internal/search"
	"experiences/api/internal/store"
)

type fakeExperiences struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]*experience.Experience
	saves    int
	insertFn func(*experience.Experience) error
	saveFn   func(*experience.Experience) error
	pdfURLs  map[int64]string
}

func newFakeExperiences(items ...*experience.Experience) *fakeExperiences {
	f := &fakeExperiences{items: map[int64]*experience.Experience{}, pdfURLs: map[int64]string{}}
	for _, item := range items {
		item.Normalize()
		f.items[item.ID] = item
		if item.ID > f.nextID {
			f.nextID = item.ID
		}
	}
	return f
}

func (f *fakeExperiences) LoadShallowByID(_ context.Context, id int64) (*experience.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeExperiences) LoadByID(ctx context.Context, id int64, _ bool) (*experience.Experience, error) {
	return f.LoadShallowByID(ctx, id)
}

func (f *fakeExperiences) GetDetailForm(ctx context.Context, id int64) (*experience.Experience, error) {
	return f.LoadShallowByID(ctx, id)
}

func (f *fakeExperiences) ListAll(context.Context) ([]*experience.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*experience.Experience
	for id := int64(1); id <= f.nextID; id++ {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeExperiences) ListByUser(ctx context.Context, userID int64) ([]*experience.Experience, error) {
	all, _ := f.ListAll(ctx)
	var out []*experience.Experience
	for _, item := range all {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeExperiences) Insert(_ context.Context, item *experience.Experience) error {
	if f.insertFn != nil {
		if err := f.insertFn(item); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	item.ID = f.nextID
	f.items[item.ID] = item
	return nil
}

func (f *fakeExperiences) Save(_ context.Context, item *experience.Experience) error {
	if f.saveFn != nil {
		if err := f.saveFn(item); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.items[item.ID] = item
	return nil
}

func (f *fakeExperiences) SetPDFURL(_ context.Context, id int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfURLs[id] = url
	if item, ok := f.items[id]; ok {
		item.PDFURL = url
	}
	return nil
}

type fakeUsers struct {
	users map[int64]store.User
	roles map[int64][]string
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) RolesForUser(_ context.Context, id int64) ([]string, error) {
	return f.roles[id], nil
}

type sentEvent struct {
	Channel string
	Event   string
	Payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *recordingNotifier) Broadcast(_ context.Context, channel, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Channel: channel, Event: event, Payload: payload})
	return n.err
}

func (n *recordingNotifier) named(event string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeArchive struct {
	mu        sync.Mutex
	snapshots []string
	err       error
}

func (a *fakeArchive) Snapshot(e *experience.Experience, author, message string) (archive.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return archive.Revision{}, a.err
	}
	a.snapshots = append(a.snapshots, message)
	return archive.Revision{Hash: "abc1234", Author: author, Message: message}, nil
}

func (a *fakeArchive) History(int64, int) ([]archive.Revision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]archive.Revision, 0, len(a.snapshots))
	for i := len(a.snapshots) - 1; i >= 0; i-- {
		out = append(out, archive.Revision{Message: a.snapshots[i]})
	}
	return out, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	indexed []int64
	err     error
	lastQ   search.Query
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	return search.Response{Results: []search.Result{{ID: 1, Name: "Huerta"}}, Total: 1, Query: q.Text, Backend: search.BackendPG}
}

func (f *fakeSearch) IndexExperience(_ context.Context, e *experience.Experience) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, e.ID)
	return f.err
}

type fakeMailer struct {
	mu       sync.Mutex
	results  []string
	approved []string
	err      error
}

func (m *fakeMailer) SendEvaluationResult(_ context.Context, to, _, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, to+":"+result)
	return m.err
}

func (m *fakeMailer) SendEditApproved(_ context.Context, to, _, experienceName string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approved = append(m.approved, to+":"+experienceName)
	return m.err
}

type fakeReports struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (r *fakeReports) ExperiencePDF(_ context.Context, e *experience.Experience, _ string) (*export.Result, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if e == nil {
		return nil, export.ErrNothingToExport
	}
	return &export.Result{Data: []byte("%PDF"), Filename: "x.pdf", MimeType: "application/pdf"}, nil
}

type fakePublisher struct {
	err error
}

func (p *fakePublisher) PublishPDF(_ context.Context, id int64, _ []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("https://objects.example.com/reports/Experiencia-%d.pdf", id), nil
}

var errBoom = errors.New("boom")

const (
	adminID   int64 = 1
	teacherID int64 = 2
	otherID   int64 = 3
)

type harness struct {
	svc         *Service
	experiences *fakeExperiences
	permissions *permission.InMemoryStore
	notifier    *recordingNotifier
	archive     *fakeArchive
	search      *fakeSearch
	mailer      *fakeMailer
	metrics     *metrics.Metrics
	clock       *time.Time
}

func newHarness(items ...*experience.Experience) *harness {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	h := &harness{
		experiences: newFakeExperiences(items...),
		permissions: permission.NewInMemoryStore(),
		notifier:    &recordingNotifier{},
		archive:     &fakeArchive{},
		search:      &fakeSearch{},
		mailer:      &fakeMailer{},
		metrics:     metrics.New(prometheus.NewRegistry()),
		clock:       &now,
	}
	clock := func() time.Time { return *h.clock }
	users := &fakeUsers{
		users: map[int64]store.User{
			adminID:   {ID: adminID, Username: "admin", Email: "admin@example.com", FirstName: "Marta"},
			teacherID: {ID: teacherID, Username: "profe", Email: "profe@example.com"},
			otherID:   {ID: otherID, Email: "otro@example.com"},
		},
		roles: map[int64][]string{
			adminID:   {"SUPERADMIN"},
			teacherID: {"Profesor"},
			otherID:   {"Evaluador"},
		},
	}
	h.svc = New(Deps{
		Experiences: h.experiences,
		Permissions: permission.NewMachine(h.permissions, permission.WithClock(clock)),
		Roles:       users,
		Users:       users,
		Notifier:    h.notifier,
		Reports:     &fakeReports{},
		Publisher:   &fakePublisher{},
		Mailer:      h.mailer,
		Search:      h.search,
		Archive:     h.archive,
		Metrics:     h.metrics,
		Clock:       clock,
	})
	return h
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

func sampleExperience(id, userID int64) *experience.Experience {
	return &experience.Experience{
		ID:      id,
		Name:    "Huerta escolar",
		UserID:  userID,
		Leaders: []*experience.Leader{{Name: "A", IdentityDocument: "123", Phone: 3001234567}},
	}
}
