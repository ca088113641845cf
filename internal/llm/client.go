// Package llm adapts hosted chat-completion providers to a single interface.
// Provider-specific error shapes never leave this package: adapters translate
// them into *Error values carrying a Kind.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling parameters of a single completion call.
// Zero penalties are omitted by providers that support them.
type Params struct {
	Temperature      float32
	MaxTokens        int
	PresencePenalty  float32
	FrequencyPenalty float32
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Complete(ctx context.Context, messages []Message, params Params) (Response, error)
}
