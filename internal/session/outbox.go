package session

import (
	"context"
	"sync"
)

// Outbox collects the notifications and navigation a session's workflow
// asks for until the page picks them up.
type Outbox struct {
	mu       sync.Mutex
	notices  []string
	redirect string
}

// Notify queues a message for the shopper.
func (o *Outbox) Notify(_ context.Context, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, message)
}

// Navigate records the page the shopper should be sent to.
func (o *Outbox) Navigate(_ context.Context, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.redirect = path
}

// Drain returns and clears the queued notices and redirect.
func (o *Outbox) Drain() (notices []string, redirect string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	notices, redirect = o.notices, o.redirect
	o.notices, o.redirect = nil, ""
	return notices, redirect
}
