// Package store holds the authoritative cart for one storefront session.
//
// A Store serializes every mutation: the change, the write to the durable
// slot and the notification of subscribers all happen inside one critical
// section, so every subscriber observes each snapshot in mutation order and
// never a partially applied change.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/slot"
	apperrors "github.com/utafrali/promarket/pkg/errors"
)

// DefaultNamespace is the slot key prefix carts are persisted under.
const DefaultNamespace = "promarket_cart"

// Mutation operation labels.
const (
	OpAdd            = "add"
	OpChangeQuantity = "change_quantity"
	OpRemove         = "remove"
	OpClear          = "clear"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of applied cart mutations",
		},
		[]string{"op"},
	)

	persistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cart_persist_failures_total",
			Help: "Total number of cart writes to the durable slot that failed",
		},
	)
)

// Listener is notified with the post-mutation snapshot. Listeners run
// synchronously inside the mutation and must not call the store's mutators.
type Listener func(ctx context.Context, op string, snap domain.Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store is the single source of truth for one cart.
type Store struct {
	// mu serializes mutation, persistence and notification.
	mu sync.Mutex
	// stateMu guards items so listeners can read Snapshot during notification.
	stateMu sync.RWMutex
	items   []domain.LineItem

	subsMu sync.Mutex
	subs   []subscription
	nextID int

	slot   slot.Slot
	key    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Key returns the slot key for a session under the given namespace.
func Key(namespace, sessionID string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + sessionID
}

// Open creates a store bound to key in sl and rehydrates it from the slot.
// A missing or unreadable value yields an empty cart.
func Open(ctx context.Context, sl slot.Slot, key string, opts ...Option) *Store {
	s := &Store{
		items:  []domain.LineItem{},
		slot:   sl,
		key:    key,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items = s.load(ctx)
	return s
}

// Key returns the slot key this store persists to.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) load(ctx context.Context) []domain.LineItem {
	data, err := s.slot.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "cart slot unreadable, starting empty",
				slog.String("key", s.key),
				slog.String("error", err.Error()),
			)
		}
		return []domain.LineItem{}
	}

	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.DebugContext(ctx, "cart slot corrupt, starting empty",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return []domain.LineItem{}
	}

	// Drop anything that breaks the line item invariants.
	clean := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" || item.Quantity <= 0 || domain.FindItemIndex(clean, item.ID) >= 0 {
			continue
		}
		clean = append(clean, item)
	}
	return clean
}

// Snapshot returns a read-only copy of the cart and its totals.
func (s *Store) Snapshot() domain.Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return domain.NewSnapshot(s.items)
}

// Subscribe registers fn for every subsequent mutation and returns a function
// that removes it. Listeners are called in registration order.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Add puts one unit of product into the cart. An existing line item with the
// same id has its quantity incremented; otherwise a new item is appended.
func (s *Store) Add(ctx context.Context, p domain.Product) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.apply(func(items []domain.LineItem) ([]domain.LineItem, bool) {
		if i := domain.FindItemIndex(items, p.ID); i >= 0 {
			items[i].Quantity++
			return items, true
		}
		return append(items, domain.LineItem{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Image:    p.Image,
			Quantity: 1,
		}), true
	})
	s.commit(ctx, OpAdd, snap)

	s.logger.DebugContext(ctx, "item added to cart",
		slog.String("key", s.key),
		slog.String("product_id", p.ID),
		slog.Int("item_count", snap.ItemCount),
	)
	return snap
}

// ChangeQuantity adjusts an item's quantity by delta. A resulting quantity of
// zero or less removes the item. It reports false, without persisting or
// notifying, when no item has the id.
func (s *Store) ChangeQuantity(ctx context.Context, id string, delta int) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	snap := s.apply(func(items []domain.LineItem) ([]domain.LineItem, bool) {
		i := domain.FindItemIndex(items, id)
		if i < 0 {
			return items, false
		}
		changed = true
		if q := items[i].Quantity + delta; q > 0 {
			items[i].Quantity = q
			return items, true
		}
		return append(items[:i], items[i+1:]...), true
	})
	if !changed {
		return snap, false
	}
	s.commit(ctx, OpChangeQuantity, snap)
	return snap, true
}

// Remove deletes the item with the given id. It reports false, without
// persisting or notifying, when no item has the id.
func (s *Store) Remove(ctx context.Context, id string) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	snap := s.apply(func(items []domain.LineItem) ([]domain.LineItem, bool) {
		i := domain.FindItemIndex(items, id)
		if i < 0 {
			return items, false
		}
		changed = true
		return append(items[:i], items[i+1:]...), true
	})
	if !changed {
		return snap, false
	}
	s.commit(ctx, OpRemove, snap)
	return snap, true
}

// Clear empties the cart and deletes its slot value.
func (s *Store) Clear(ctx context.Context) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.apply(func([]domain.LineItem) ([]domain.LineItem, bool) {
		return []domain.LineItem{}, true
	})
	s.commit(ctx, OpClear, snap)
	return snap
}

// apply runs fn over the live items under the state lock and returns the
// resulting snapshot. fn reports whether it changed anything.
func (s *Store) apply(fn func([]domain.LineItem) ([]domain.LineItem, bool)) domain.Snapshot {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if items, changed := fn(s.items); changed {
		s.items = items
	}
	return domain.NewSnapshot(s.items)
}

// commit persists snap and notifies listeners. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string, snap domain.Snapshot) {
	mutationsTotal.WithLabelValues(op).Inc()
	s.persist(ctx, op, snap)

	s.subsMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(ctx, op, snap)
	}
}

// persist writes the cart to the slot. Failures are logged and counted; the
// in-memory mutation stands either way.
func (s *Store) persist(ctx context.Context, op string, snap domain.Snapshot) {
	var err error
	if op == OpClear {
		err = s.slot.Delete(ctx, s.key)
	} else {
		var data []byte
		data, err = json.Marshal(snap.Items)
		if err == nil {
			err = s.slot.Store(ctx, s.key, data)
		}
	}
	if err != nil {
		persistFailuresTotal.Inc()
		s.logger.ErrorContext(ctx, "failed to persist cart",
			slog.String("key", s.key),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}
