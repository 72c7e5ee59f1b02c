package llm

import "context"

// Role values for conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the running conversation.
type Turn struct {
	Role    string
	Content string
}

// Request carries the conversation context for one reply.
type Request struct {
	Turns    []Turn
	Persona  string
	Style    string
	Language string
}

// Usage is token accounting reported by the vendor.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a generated reply.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Generator is the contract for any reply generation vendor.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}
