// Package session keeps the live cart, checkout form and workflow of each
// storefront session.
package session

import (
	"container/list"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/promarket/internal/checkoutform"
	"github.com/utafrali/promarket/internal/event"
	"github.com/utafrali/promarket/internal/render"
	"github.com/utafrali/promarket/internal/slot"
	"github.com/utafrali/promarket/internal/store"
	"github.com/utafrali/promarket/internal/submission"
)

// Where a request carries its session id.
const (
	CookieName = "promarket_session"
	HeaderName = "X-Session-ID"
)

// DefaultMaxSessions bounds the registry when no limit is configured.
const DefaultMaxSessions = 10000

var sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_sessions_active",
	Help: "Number of sessions currently held in memory",
})

// Session is one shopper's live state.
type Session struct {
	ID       string
	Store    *store.Store
	Form     *checkoutform.Controller
	Workflow *submission.Workflow
	Display  *render.Display
	Outbox   *Outbox

	detach []func()
}

func (s *Session) close() {
	for _, fn := range s.detach {
		fn()
	}
}

// Config sizes the registry.
type Config struct {
	// Namespace prefixes slot keys.
	Namespace   string
	MaxSessions int
}

// Deps are the collaborators every session is wired to.
type Deps struct {
	Slot     slot.Slot
	Renderer *render.Renderer
	Backend  submission.Backend
	// Events is optional.
	Events *event.Producer
	Logger *slog.Logger
}

type entry struct {
	id      string
	session *Session
	// refs counts requests holding the session.
	refs int
}

// busy reports whether dropping the session could orphan work on it.
func (e *entry) busy() bool {
	return e.refs > 0 || e.session.Workflow.Status() == submission.StatusSubmitting
}

// Registry maps session ids to sessions, opening them from the slot on
// first use and evicting the least recently used idle sessions beyond
// capacity. An evicted session's cart survives in the slot. Sessions in use
// are never evicted, so the registry may exceed capacity while they are.
type Registry struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	lru   *list.List
	items map[string]*list.Element
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, deps Deps) *Registry {
	if cfg.Namespace == "" {
		cfg.Namespace = store.DefaultNamespace
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{
		cfg:   cfg,
		deps:  deps,
		lru:   list.New(),
		items: make(map[string]*list.Element),
	}
}

// Acquire returns the session for id, opening it from the slot if needed,
// and pins it in memory until release is called. release is idempotent.
func (r *Registry) Acquire(ctx context.Context, id string) (s *Session, release func()) {
	r.mu.Lock()
	if e, ok := r.pin(id); ok {
		r.mu.Unlock()
		return e.session, r.releaser(ctx, e)
	}
	r.mu.Unlock()

	// The slot read happens outside the lock so a slow slot only delays
	// this id.
	opened := r.open(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pin(id); ok {
		opened.close()
		return e.session, r.releaser(ctx, e)
	}
	e := &entry{id: id, session: opened, refs: 1}
	r.items[id] = r.lru.PushFront(e)
	r.trim(ctx)
	sessionsActive.Set(float64(r.lru.Len()))
	return opened, r.releaser(ctx, e)
}

// pin marks a held session as used. r.mu must be held.
func (r *Registry) pin(id string) (*entry, bool) {
	el, ok := r.items[id]
	if !ok {
		return nil, false
	}
	r.lru.MoveToFront(el)
	e := el.Value.(*entry)
	e.refs++
	return e, true
}

func (r *Registry) releaser(ctx context.Context, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.refs--
			r.trim(ctx)
			sessionsActive.Set(float64(r.lru.Len()))
		})
	}
}

func (r *Registry) open(ctx context.Context, id string) *Session {
	log := r.deps.Logger.With(slog.String("session_id", id))
	st := store.Open(ctx, r.deps.Slot, store.Key(r.cfg.Namespace, id), store.WithLogger(log))
	form := checkoutform.NewController()
	outbox := &Outbox{}
	display := render.NewDisplay(r.deps.Renderer, render.AllSurfaces)

	s := &Session{
		ID:       id,
		Store:    st,
		Form:     form,
		Workflow: submission.New(st, form, r.deps.Backend, outbox, outbox, log),
		Display:  display,
		Outbox:   outbox,
	}
	s.detach = append(s.detach, display.Attach(st))
	if r.deps.Events != nil {
		s.detach = append(s.detach, st.Subscribe(r.deps.Events.Listener(id)))
	}

	log.DebugContext(ctx, "session opened", slog.Int("item_count", st.Snapshot().ItemCount))
	return s
}

// trim evicts idle sessions, oldest first, until the registry is within
// capacity or only busy sessions remain. r.mu must be held.
func (r *Registry) trim(ctx context.Context) {
	for el := r.lru.Back(); el != nil && r.lru.Len() > r.cfg.MaxSessions; {
		prev := el.Prev()
		if e := el.Value.(*entry); !e.busy() {
			r.remove(el)
			r.deps.Logger.DebugContext(ctx, "session evicted", slog.String("session_id", e.id))
		}
		el = prev
	}
}

// remove drops el and detaches its session. r.mu must be held.
func (r *Registry) remove(el *list.Element) {
	e := el.Value.(*entry)
	r.lru.Remove(el)
	delete(r.items, e.id)
	e.session.close()
}

// Evict drops id from memory unless it is in use, and reports whether it
// did. Its cart remains in the slot.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.items[id]
	if !ok || el.Value.(*entry).busy() {
		return false
	}
	r.remove(el)
	sessionsActive.Set(float64(r.lru.Len()))
	return true
}

// Len returns the number of sessions in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// IDFromRequest returns the session id carried by req's cookie or header,
// or "" when it has none. Ids that are not UUIDs are ignored.
func IDFromRequest(req *http.Request) string {
	candidates := []string{req.Header.Get(HeaderName)}
	if c, err := req.Cookie(CookieName); err == nil {
		candidates = append([]string{c.Value}, candidates...)
	}
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return ""
}
