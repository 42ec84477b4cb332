package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dandye/mcp-security/pkg/log"
)

// ErrUnknownPersona is returned when a persona is not in the configured list.
var ErrUnknownPersona = errors.New("unknown persona")

// PersonaStore holds the active persona of each client session.
// Sessions that never selected a persona see the fallback.
type PersonaStore struct {
	active   map[*mcp.ServerSession]string
	fallback string
	personas []string
	mu       sync.RWMutex
}

// NewPersonaStore creates a [PersonaStore] accepting the given personas.
func NewPersonaStore(fallback string, personas []string) *PersonaStore {
	return &PersonaStore{
		active:   map[*mcp.ServerSession]string{},
		fallback: fallback,
		personas: slices.Clone(personas),
	}
}

// Personas returns the selectable personas.
func (p *PersonaStore) Personas() []string {
	return slices.Clone(p.personas)
}

// Active returns the persona of session, or the fallback.
func (p *PersonaStore) Active(session *mcp.ServerSession) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if persona, ok := p.active[session]; ok {
		return persona
	}

	return p.fallback
}

// Set records persona for session. It reports whether this is the first
// selection made by session.
func (p *PersonaStore) Set(session *mcp.ServerSession, persona string) (bool, error) {
	if !slices.Contains(p.personas, persona) {
		return false, fmt.Errorf("%w: %q", ErrUnknownPersona, persona)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, existed := p.active[session]
	p.active[session] = persona

	return !existed, nil
}

// Forget drops the state of session.
func (p *PersonaStore) Forget(session *mcp.ServerSession) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, session)
}

// Len returns the number of sessions with a selected persona.
func (p *PersonaStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.active)
}

// forgetOnClose drops the state of session once it ends.
func (p *PersonaStore) forgetOnClose(ctx context.Context, session *mcp.ServerSession) {
	go func() {
		err := session.Wait()
		p.Forget(session)

		log.WithContext(ctx).DebugContext(ctx, "session ended",
			slog.String("session", session.ID()),
			slog.Any("err", err),
		)
	}()
}
