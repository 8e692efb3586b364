package render

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/store"
)

// Display keeps the current view of one page's surfaces in step with a
// store. It re-projects the whole view on every notification.
type Display struct {
	renderer *Renderer
	present  Surface

	mu   sync.RWMutex
	view View

	renders atomic.Uint64
}

// NewDisplay creates a display for the surfaces in present.
func NewDisplay(r *Renderer, present Surface) *Display {
	return &Display{renderer: r, present: present}
}

// Attach renders the store's current snapshot and subscribes to it. The
// returned function detaches the display.
func (d *Display) Attach(s *store.Store) (detach func()) {
	d.render(s.Snapshot())
	return s.Subscribe(d.OnChange)
}

// OnChange is the store.Listener that re-renders the display.
func (d *Display) OnChange(_ context.Context, _ string, snap domain.Snapshot) {
	d.render(snap)
}

func (d *Display) render(snap domain.Snapshot) {
	v := d.renderer.Project(snap, d.present)

	d.mu.Lock()
	d.view = v
	d.mu.Unlock()

	d.renders.Add(1)
}

// View returns the most recently rendered view.
func (d *Display) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// Present returns the surfaces this display renders.
func (d *Display) Present() Surface {
	return d.present
}

// Renders returns how many times the display has rendered.
func (d *Display) Renders() uint64 {
	return d.renders.Load()
}
