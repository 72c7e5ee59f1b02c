package agents

import (
	"errors"
	"strings"
	"sync"

	"github.com/wicara-ai/wicara/pkg/config"
)

// ErrAgentNotFound is returned when no agent matches the requested id.
var ErrAgentNotFound = errors.New("agent not found")

// Agent is a voice persona a call can be routed to.
type Agent struct {
	ID       string
	Name     string
	Persona  string
	Style    string
	Language string
	Greeting string
}

// Store resolves agents by id. Backed by configuration; calls that do
// not name an agent get the default.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]Agent
	defaultID string
}

func NewStore(cfgs []config.AgentConfig) *Store {
	s := &Store{byID: make(map[string]Agent, len(cfgs))}
	for _, c := range cfgs {
		a := Agent{
			ID:       c.ID,
			Name:     c.Name,
			Persona:  c.Persona,
			Style:    c.Style,
			Language: c.Language,
			Greeting: c.Greeting,
		}
		s.byID[a.ID] = a
		if c.Default || s.defaultID == "" {
			s.defaultID = a.ID
		}
	}
	return s
}

// Lookup returns the agent with the given id. An empty id resolves to
// the default agent.
func (s *Store) Lookup(id string) (Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id = strings.TrimSpace(id)
	if id == "" {
		id = s.defaultID
	}
	if id == "" {
		return Agent{}, ErrAgentNotFound
	}
	a, ok := s.byID[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return a, nil
}

// Default returns the default agent when one is configured.
func (s *Store) Default() (Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[s.defaultID]
	return a, ok
}
