package engine

import "github.com/factumhq/factum/pkg/types"

// Notifier receives mutation events from the engine. The dashboard's
// websocket hub implements it to stream a live view; the engine never blocks
// on a notifier, so implementations must return quickly.
type Notifier interface {
	MemoryAdded(m *types.Memory)
	MemoryUpdated(m *types.Memory)
	MemoryDeleted(id string)
}

func (e *Engine) notifyAdded(m *types.Memory) {
	if e.notifier != nil {
		e.notifier.MemoryAdded(m)
	}
}

func (e *Engine) notifyUpdated(m *types.Memory) {
	if e.notifier != nil {
		e.notifier.MemoryUpdated(m)
	}
}

func (e *Engine) notifyDeleted(id string) {
	if e.notifier != nil {
		e.notifier.MemoryDeleted(id)
	}
}
