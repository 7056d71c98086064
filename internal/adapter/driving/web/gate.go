package web

import (
	"log/slog"
	"sync"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PresentationGate = (*Gate)(nil)

// Gate implements driven.PresentationGate by remembering which surface the
// session manager asked for. The handler serves that surface at /.
type Gate struct {
	logger *slog.Logger

	mu      sync.RWMutex
	surface model.SurfaceKind
}

// NewGate creates a Gate that shows nothing until the first directive.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger, surface: model.SurfaceNone}
}

// ShowCredentialPrompt implements driven.PresentationGate.
func (g *Gate) ShowCredentialPrompt() {
	g.show(model.SurfaceCredentialPrompt)
}

// ShowMainSurface implements driven.PresentationGate. Showing the main
// surface closes the prompt; repeated calls are no-ops.
func (g *Gate) ShowMainSurface() {
	g.show(model.SurfaceMain)
}

// Surface returns the surface currently shown.
func (g *Gate) Surface() model.SurfaceKind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.surface
}

func (g *Gate) show(s model.SurfaceKind) {
	g.mu.Lock()
	prev := g.surface
	g.surface = s
	g.mu.Unlock()

	if prev == s {
		g.logger.Debug("surface already shown", "surface", s)
		return
	}
	g.logger.Info("surface changed", "from", prev, "to", s)
}
