package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"cashregister/internal/model"
	"cashregister/internal/repository"

	"github.com/google/uuid"
)

// ── In-memory RegisterRepository ──────────────────────────────────────────────
// One mutex stands in for the database lock: WithOpenSession holds it for the
// whole callback and commits staged writes only when the callback succeeds.

type memRegisterRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.RegisterSession
	order    []uuid.UUID
	events   []model.OutboxEvent
}

func newMemRegisterRepo() *memRegisterRepo {
	return &memRegisterRepo{sessions: make(map[uuid.UUID]*model.RegisterSession)}
}

func cloneSession(s *model.RegisterSession) *model.RegisterSession {
	c := *s
	c.Entries = append([]model.LedgerEntry(nil), s.Entries...)
	return &c
}

func (r *memRegisterRepo) CreateSession(_ context.Context, s *model.RegisterSession, events ...*model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.IsOpen() {
			return repository.ErrOpenSessionExists
		}
	}
	r.sessions[s.ID] = cloneSession(s)
	r.order = append(r.order, s.ID)
	for _, ev := range events {
		r.events = append(r.events, *ev)
	}
	return nil
}

func (r *memRegisterRepo) FindOpenSession(_ context.Context) (*model.RegisterSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.IsOpen() {
			return cloneSession(s), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRegisterRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(s), nil
}

func (r *memRegisterRepo) FindEntryByID(_ context.Context, id uuid.UUID) (*model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		for _, e := range s.Entries {
			if e.ID == id {
				e := e
				return &e, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRegisterRepo) ListSessions(_ context.Context, page, limit int) ([]model.RegisterSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]model.RegisterSession, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		all = append(all, *cloneSession(r.sessions[r.order[i]]))
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memRegisterRepo) ListEntriesSince(_ context.Context, since time.Time) ([]model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LedgerEntry
	for _, s := range r.sessions {
		for _, e := range s.Entries {
			if !e.RecordedAt.Before(since) {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (r *memRegisterRepo) WithOpenSession(_ context.Context, id uuid.UUID, fn func(tx repository.SessionTx, s *model.RegisterSession) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !stored.IsOpen() {
		return repository.ErrSessionClosed
	}
	working := cloneSession(stored)
	tx := &memTx{repo: r, session: working}
	if err := fn(tx, working); err != nil {
		return err
	}
	r.sessions[id] = cloneSession(working)
	r.events = append(r.events, tx.events...)
	return nil
}

func (r *memRegisterRepo) entries(id uuid.UUID) []model.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.LedgerEntry(nil), r.sessions[id].Entries...)
}

func (r *memRegisterRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type memTx struct {
	repo    *memRegisterRepo
	session *model.RegisterSession
	events  []model.OutboxEvent
}

func (t *memTx) AppendEntry(e *model.LedgerEntry) error {
	if e.CancelsEntryID != nil {
		for _, s := range t.repo.sessions {
			for _, existing := range s.Entries {
				if existing.CancelsEntryID != nil && *existing.CancelsEntryID == *e.CancelsEntryID {
					return repository.ErrAlreadyCancelled
				}
			}
		}
	}
	t.session.EntryCount++
	e.SessionID = t.session.ID
	e.Seq = t.session.EntryCount
	t.session.Entries = append(t.session.Entries, *e)
	return nil
}

func (t *memTx) Close(s *model.RegisterSession) error {
	if !s.IsOpen() {
		return repository.ErrSessionClosed
	}
	s.Status = model.SessionClosed
	return nil
}

func (t *memTx) Enqueue(ev *model.OutboxEvent) error {
	t.events = append(t.events, *ev)
	return nil
}

// ── Actor stub ────────────────────────────────────────────────────────────────

type stubActors struct {
	users map[uuid.UUID]*model.User
}

func newStubActors() *stubActors {
	return &stubActors{users: make(map[uuid.UUID]*model.User)}
}

func (s *stubActors) add(role string, active bool) uuid.UUID {
	id := uuid.New()
	s.users[id] = &model.User{ID: id, Username: id.String()[:8], Role: role, Active: active}
	return id
}

func (s *stubActors) Verify(ctx context.Context, actor uuid.UUID) (*model.User, error) {
	return NewActorVerifier(s).Verify(ctx, actor)
}

// stubActors doubles as the UserRepository behind the real verifier.
func (s *stubActors) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (s *stubActors) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubActors) Upsert(_ context.Context, u *model.User) error {
	s.users[u.ID] = u
	return nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	repo      *memRegisterRepo
	actors    *stubActors
	registers RegisterService
	payments  PaymentRecorder
	dashboard DashboardService
	cashier   uuid.UUID
	now       func() time.Time

	clockMu sync.Mutex
	clock   time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:   newMemRegisterRepo(),
		actors: newStubActors(),
		clock:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.cashier = f.actors.add(model.RoleCashier, true)
	now := func() time.Time {
		f.clockMu.Lock()
		defer f.clockMu.Unlock()
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.now = now
	f.registers = &registerService{repo: f.repo, actors: f.actors, now: now}
	f.payments = &paymentRecorder{repo: f.repo, actors: f.actors, now: now}
	f.dashboard = &dashboardService{repo: f.repo, now: now}
	return f
}

// ── Gated repository ──────────────────────────────────────────────────────────
// gatedRepo parks the first WithOpenSession call before it reaches the lock
// until release is closed, so a test can let other callers go first.

type gatedRepo struct {
	*memRegisterRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedRepo(inner *memRegisterRepo) *gatedRepo {
	return &gatedRepo{memRegisterRepo: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRepo) WithOpenSession(ctx context.Context, id uuid.UUID, fn func(tx repository.SessionTx, s *model.RegisterSession) error) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.memRegisterRepo.WithOpenSession(ctx, id, fn)
}
