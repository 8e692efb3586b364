package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/slot/memory"
	"github.com/utafrali/promarket/pkg/logger"
)

// --- Test Helpers ---

const testKey = "promarket_cart:sess-1"

func newTestStore(t *testing.T) (*Store, *memory.Slot) {
	t.Helper()
	sl := memory.NewSlot()
	return Open(context.Background(), sl, testKey, WithLogger(logger.Discard())), sl
}

func product(id string, price float64) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    price,
		Image:    "https://img.example.com/" + id + ".jpg",
		Category: "Audio",
	}
}

// failingSlot fails every write and read.
type failingSlot struct{}

func (failingSlot) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingSlot) Store(context.Context, string, []byte) error { return errors.New("connection refused") }
func (failingSlot) Delete(context.Context, string) error        { return errors.New("connection refused") }

type recorder struct {
	mu    sync.Mutex
	ops   []string
	snaps []domain.Snapshot
}

func (r *recorder) listen(_ context.Context, op string, snap domain.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

// --- Open ---

func TestOpen_EmptySlot(t *testing.T) {
	s, _ := newTestStore(t)

	snap := s.Snapshot()
	assert.True(t, snap.IsEmpty())
	assert.Zero(t, snap.ItemCount)
	assert.Equal(t, testKey, s.Key())
}

func TestOpen_CorruptSlotYieldsEmptyCart(t *testing.T) {
	sl := memory.NewSlot()
	require.NoError(t, sl.Store(context.Background(), testKey, []byte(`{not json`)))

	s := Open(context.Background(), sl, testKey, WithLogger(logger.Discard()))

	assert.True(t, s.Snapshot().IsEmpty())
}

func TestOpen_UnreadableSlotYieldsEmptyCart(t *testing.T) {
	s := Open(context.Background(), failingSlot{}, testKey, WithLogger(logger.Discard()))

	assert.True(t, s.Snapshot().IsEmpty())
}

func TestOpen_DropsInvalidPersistedItems(t *testing.T) {
	sl := memory.NewSlot()
	raw := `[{"id":"1","name":"A","price":1,"quantity":2},
		{"id":"2","name":"B","price":1,"quantity":0},
		{"id":"","name":"C","price":1,"quantity":1},
		{"id":"1","name":"A dup","price":1,"quantity":5}]`
	require.NoError(t, sl.Store(context.Background(), testKey, []byte(raw)))

	s := Open(context.Background(), sl, testKey, WithLogger(logger.Discard()))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "A", snap.Items[0].Name)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "promarket_cart:abc", Key("", "abc"))
	assert.Equal(t, "shop:abc", Key("shop", "abc"))
}

// --- Add ---

func TestAdd_NewItem(t *testing.T) {
	s, _ := newTestStore(t)

	snap := s.Add(context.Background(), product("p1", 999))

	require.Len(t, snap.Items, 1)
	item := snap.Items[0]
	assert.Equal(t, "p1", item.ID)
	assert.Equal(t, "Product p1", item.Name)
	assert.Equal(t, 999.0, item.Price)
	assert.Equal(t, "https://img.example.com/p1.jpg", item.Image)
	assert.Equal(t, 1, item.Quantity)
}

func TestAdd_SameProductTwiceMerges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, product("p1", 10))
	snap := s.Add(ctx, product("p1", 10))

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestAdd_PreservesInsertionOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, product("c", 1))
	s.Add(ctx, product("a", 1))
	s.Add(ctx, product("b", 1))
	snap := s.Add(ctx, product("a", 1))

	ids := make([]string, 0, len(snap.Items))
	for _, item := range snap.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

// --- ChangeQuantity ---

func TestChangeQuantity_Increment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, product("p1", 10))

	snap, ok := s.ChangeQuantity(ctx, "p1", +1)

	require.True(t, ok)
	assert.Equal(t, 2, snap.Items[0].Quantity)
}

func TestChangeQuantity_DecrementToZeroRemoves(t *testing.T) {
	s, sl := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, product("p1", 10))
	s.Add(ctx, product("p2", 5))

	snap, ok := s.ChangeQuantity(ctx, "p1", -1)

	require.True(t, ok)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "p2", snap.Items[0].ID)

	// Persisted state never holds a zero quantity.
	data, err := sl.Load(ctx, testKey)
	require.NoError(t, err)
	var persisted []domain.LineItem
	require.NoError(t, json.Unmarshal(data, &persisted))
	for _, item := range persisted {
		assert.Positive(t, item.Quantity)
	}
}

func TestChangeQuantity_UnknownIDIsNoop(t *testing.T) {
	s, sl := newTestStore(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	snap, ok := s.ChangeQuantity(context.Background(), "ghost", -1)

	assert.False(t, ok)
	assert.True(t, snap.IsEmpty())
	assert.Zero(t, rec.count(), "no render for a missing id")
	assert.False(t, sl.Has(testKey), "no persist for a missing id")
}

// --- Remove ---

func TestRemove_Present(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, product("p1", 10))
	s.ChangeQuantity(ctx, "p1", +1)

	snap, ok := s.Remove(ctx, "p1")

	assert.True(t, ok)
	assert.True(t, snap.IsEmpty())
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, product("p1", 10))
	rec := &recorder{}
	s.Subscribe(rec.listen)

	snap, ok := s.Remove(ctx, "nope")

	assert.False(t, ok)
	assert.Len(t, snap.Items, 1)
	assert.Zero(t, rec.count())
}

// --- Clear ---

func TestClear_EmptiesAndDeletesSlot(t *testing.T) {
	s, sl := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, product("p1", 10))
	require.True(t, sl.Has(testKey))

	snap := s.Clear(ctx)

	assert.True(t, snap.IsEmpty())
	assert.Zero(t, snap.ItemCount)
	assert.False(t, sl.Has(testKey))
}

// --- Persistence ---

func TestPersistence_RoundTrip(t *testing.T) {
	s, sl := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, product("p1", 19.99))
	s.Add(ctx, product("p2", 5))
	s.Add(ctx, product("p1", 19.99))
	want := s.Snapshot()

	reopened := Open(ctx, sl, testKey, WithLogger(logger.Discard()))

	assert.Equal(t, want.Items, reopened.Snapshot().Items)
}

func TestPersistence_WriteFailureKeepsMutation(t *testing.T) {
	s := Open(context.Background(), failingSlot{}, testKey, WithLogger(logger.Discard()))
	rec := &recorder{}
	s.Subscribe(rec.listen)

	snap := s.Add(context.Background(), product("p1", 10))

	assert.Equal(t, 1, snap.ItemCount)
	assert.Equal(t, 1, rec.count())
}

// --- Subscriptions ---

func TestSubscribe_ReceivesEveryMutationInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	rec := &recorder{}
	s.Subscribe(rec.listen)

	s.Add(ctx, product("p1", 10))
	s.ChangeQuantity(ctx, "p1", +1)
	s.Remove(ctx, "p1")
	s.Clear(ctx)

	assert.Equal(t, []string{OpAdd, OpChangeQuantity, OpRemove, OpClear}, rec.ops)
	assert.Equal(t, 1, rec.snaps[0].ItemCount)
	assert.Equal(t, 2, rec.snaps[1].ItemCount)
	assert.Equal(t, 0, rec.snaps[2].ItemCount)
}

func TestSubscribe_ListenerMayReadSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	var seen int
	s.Subscribe(func(_ context.Context, _ string, snap domain.Snapshot) {
		seen = s.Snapshot().ItemCount
		assert.Equal(t, snap.ItemCount, seen)
	})

	s.Add(context.Background(), product("p1", 10))

	assert.Equal(t, 1, seen)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	first, second := &recorder{}, &recorder{}
	unsubscribe := s.Subscribe(first.listen)
	s.Subscribe(second.listen)

	s.Add(ctx, product("p1", 10))
	unsubscribe()
	unsubscribe()
	s.Add(ctx, product("p1", 10))

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 2, second.count())
}

func TestSnapshot_IsIsolatedFromStore(t *testing.T) {
	s, _ := newTestStore(t)
	snap := s.Add(context.Background(), product("p1", 10))

	snap.Items[0].Quantity = 50

	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)
}

// --- Invariants over random operation sequences ---

func TestInvariants_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}

	for run := 0; run < 50; run++ {
		t.Run(fmt.Sprintf("run-%d", run), func(t *testing.T) {
			s, sl := newTestStore(t)
			ctx := context.Background()

			for step := 0; step < 100; step++ {
				id := ids[rng.Intn(len(ids))]
				switch rng.Intn(3) {
				case 0:
					s.Add(ctx, product(id, float64(rng.Intn(100))))
				case 1:
					delta := 1
					if rng.Intn(2) == 0 {
						delta = -1
					}
					s.ChangeQuantity(ctx, id, delta)
				case 2:
					s.Remove(ctx, id)
				}

				snap := s.Snapshot()
				sum, seen := 0, map[string]bool{}
				for _, item := range snap.Items {
					require.Positive(t, item.Quantity)
					require.False(t, seen[item.ID], "duplicate id %s", item.ID)
					seen[item.ID] = true
					sum += item.Quantity
				}
				require.Equal(t, sum, snap.ItemCount)
			}

			reopened := Open(ctx, sl, testKey, WithLogger(logger.Discard()))
			assert.Equal(t, s.Snapshot(), reopened.Snapshot())
		})
	}
}

func TestConcurrentMutations_AreSerialized(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	rec := &recorder{}
	s.Subscribe(rec.listen)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(ctx, product("p1", 1))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Snapshot().ItemCount)
	require.Equal(t, 20, rec.count())
	for i, snap := range rec.snaps {
		assert.Equal(t, i+1, snap.ItemCount, "notifications arrive in mutation order")
	}
}
