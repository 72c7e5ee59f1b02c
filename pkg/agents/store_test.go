package agents

import (
	"errors"
	"testing"

	"github.com/wicara-ai/wicara/pkg/config"
)

func TestStoreLookup(t *testing.T) {
	s := NewStore([]config.AgentConfig{
		{ID: "sari", Persona: "billing assistant"},
		{ID: "budi", Persona: "support agent", Default: true},
	})

	a, err := s.Lookup("sari")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if a.Persona != "billing assistant" {
		t.Fatalf("persona = %q", a.Persona)
	}
}

func TestStoreEmptyIDResolvesDefault(t *testing.T) {
	s := NewStore([]config.AgentConfig{
		{ID: "sari"},
		{ID: "budi", Default: true},
	})
	a, err := s.Lookup("")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if a.ID != "budi" {
		t.Fatalf("default = %q, want budi", a.ID)
	}
}

func TestStoreUnknownAgent(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Lookup("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
	if _, err := s.Lookup(""); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}
