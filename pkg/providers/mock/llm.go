package mock

import (
	"context"
	"sync"

	"github.com/wicara-ai/wicara/pkg/llm"
)

type LLMConfig struct {
	// Reply is returned for every request. When empty the generator
	// echoes the last user turn.
	Reply string
	Err   error
	// Block holds generation until the context is done.
	Block bool
}

// Generator returns canned replies and records the requests it saw.
type Generator struct {
	cfg  LLMConfig
	mu   sync.Mutex
	reqs []llm.Request
}

func NewLLM(cfg LLMConfig) *Generator {
	return &Generator{cfg: cfg}
}

func (g *Generator) Name() string { return "mock_llm" }

func (g *Generator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.cfg.Block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if g.cfg.Err != nil {
		return llm.Response{}, g.cfg.Err
	}
	reply := g.cfg.Reply
	if reply == "" {
		for i := len(req.Turns) - 1; i >= 0; i-- {
			if req.Turns[i].Role == llm.RoleUser {
				reply = "echo: " + req.Turns[i].Content
				break
			}
		}
	}
	return llm.Response{Text: reply, FinishReason: "stop"}, nil
}

// Requests returns every request seen so far.
func (g *Generator) Requests() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]llm.Request, len(g.reqs))
	copy(out, g.reqs)
	return out
}

var _ llm.Generator = (*Generator)(nil)
