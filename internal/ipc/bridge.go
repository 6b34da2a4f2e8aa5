package ipc

import (
	"context"
	"sync"

	"github.com/ternarybob/promptline/internal/model"
)

// Control operations published to the native host.
const (
	OpCreate    = "create"
	OpDestroy   = "destroy"
	OpShow      = "show"
	OpHide      = "hide"
	OpFocus     = "focus"
	OpBounds    = "bounds"
	OpClipboard = "clipboard"
)

// BridgeHost drives a native window living in another process. Window
// operations are published as control events on the bus; the host reports
// back through MarkLoaded once the renderer has finished loading.
type BridgeHost struct {
	bus *Bus

	mu      sync.Mutex
	loading bool
	pending []func()
}

// NewBridgeHost creates a host publishing on bus.
func NewBridgeHost(bus *Bus) *BridgeHost {
	return &BridgeHost{bus: bus}
}

// Create asks the host for a fresh window. The window counts as loading
// until MarkLoaded is called.
func (h *BridgeHost) Create(_ context.Context, bounds model.Rect) error {
	h.mu.Lock()
	h.loading = true
	h.mu.Unlock()
	h.bus.Control(OpCreate, bounds)
	return nil
}

// Destroy closes the window. Pending finish-load callbacks are discarded.
func (h *BridgeHost) Destroy() error {
	h.mu.Lock()
	h.loading = false
	h.pending = nil
	h.mu.Unlock()
	h.bus.Control(OpDestroy, nil)
	return nil
}

func (h *BridgeHost) SetBounds(bounds model.Rect) error {
	h.bus.Control(OpBounds, bounds)
	return nil
}

func (h *BridgeHost) Show() error {
	h.bus.Control(OpShow, nil)
	return nil
}

func (h *BridgeHost) Hide() error {
	h.bus.Control(OpHide, nil)
	return nil
}

func (h *BridgeHost) Focus() error {
	h.bus.Control(OpFocus, nil)
	return nil
}

// WriteClipboard asks the host to place text on the system clipboard.
func (h *BridgeHost) WriteClipboard(text string) error {
	h.bus.Control(OpClipboard, map[string]string{"text": text})
	return nil
}

// IsLoading reports whether the renderer has not yet finished loading.
func (h *BridgeHost) IsLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

// OnFinishLoad runs fn once loading completes, or immediately when the
// window is already loaded.
func (h *BridgeHost) OnFinishLoad(fn func()) {
	h.mu.Lock()
	if !h.loading {
		h.mu.Unlock()
		fn()
		return
	}
	h.pending = append(h.pending, fn)
	h.mu.Unlock()
}

// MarkLoaded records the renderer's finish-load signal and runs queued
// callbacks in registration order.
func (h *BridgeHost) MarkLoaded() {
	h.mu.Lock()
	h.loading = false
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Send delivers a renderer event.
func (h *BridgeHost) Send(channel string, payload any) error {
	return h.bus.Send(channel, payload)
}
