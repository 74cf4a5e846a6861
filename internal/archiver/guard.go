package archiver

import (
	"sync/atomic"

	"github.com/infracollect/archivist/internal/engine"
	"go.uber.org/zap"
)

// Guard reports archives whose owner shut down before the output was fully
// consumed. It does not keep anything alive; it only makes the truncation
// visible.
type Guard struct {
	logger *zap.Logger
	armed  atomic.Bool
}

func NewGuard(logger *zap.Logger) *Guard {
	g := &Guard{logger: logger}
	g.armed.Store(true)
	return g
}

// Disarm is called once the output was read cleanly to its end.
func (g *Guard) Disarm() {
	g.armed.Store(false)
}

func (g *Guard) Armed() bool {
	return g.armed.Load()
}

// Check returns ErrPrematureTermination if the guard is armed and disarms
// it, so a truncated archive is reported once.
func (g *Guard) Check() error {
	if !g.armed.CompareAndSwap(true, false) {
		return nil
	}
	g.logger.Error("terminated before archive finished emitting data", zap.Error(engine.ErrPrematureTermination))
	return engine.ErrPrematureTermination
}
