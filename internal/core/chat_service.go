package core

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asesorlegal/backend/internal/extract"
	"github.com/asesorlegal/backend/internal/llm"
	"github.com/asesorlegal/backend/internal/store"
)

// MaxHistoryTurns is how many trailing history turns reach the model.
const MaxHistoryTurns = 5

// Recorder accepts answered interactions for asynchronous persistence.
type Recorder interface {
	Record(rec *store.Interaction)
}

// TextExtractor yields one result per uploaded file, in order.
type TextExtractor interface {
	ExtractAll(ctx context.Context, files []extract.UploadedFile) iter.Seq[extract.Result]
}

// Settings are the per-pipeline completion settings.
type Settings struct {
	Params  llm.Params
	Timeout time.Duration
	// MaxMessageChars bounds chat messages; MaxFiles bounds document batches.
	MaxMessageChars int
	MaxFiles        int
}

type ChatRequest struct {
	UserID   string
	Message  string
	Category string
	History  []llm.Message
}

type ChatResponse struct {
	Response         string `json:"response"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

type ChatService struct {
	llm      llm.Client
	recorder Recorder
	settings Settings
}

func NewChatService(client llm.Client, recorder Recorder, settings Settings) *ChatService {
	return &ChatService{
		llm:      client,
		recorder: recorder,
		settings: settings,
	}
}

// Chat answers one user message. Persistence is handed to the recorder and
// cannot fail the request.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, validationError("message is required", nil)
	}
	if s.settings.MaxMessageChars > 0 && utf8.RuneCountInString(message) > s.settings.MaxMessageChars {
		return nil, validationError("message too long",
			fmt.Errorf("%d characters exceeds limit of %d", utf8.RuneCountInString(message), s.settings.MaxMessageChars))
	}
	category := strings.TrimSpace(req.Category)

	messages, err := BuildConversation(category, message, req.History)
	if err != nil {
		return nil, err
	}

	resp, err := complete(ctx, s.llm, s.settings, messages)
	if err != nil {
		logUpstream("chat", req.UserID, err)
		return nil, upstreamError(err)
	}

	elapsed := time.Since(start).Milliseconds()
	s.recorder.Record(&store.Interaction{
		Kind:             store.KindChat,
		UserID:           req.UserID,
		Category:         category,
		Message:          message,
		Response:         resp.Content,
		ProcessingTimeMs: elapsed,
	})

	return &ChatResponse{Response: resp.Content, ProcessingTimeMs: elapsed}, nil
}

// BuildConversation assembles [system] + last MaxHistoryTurns history turns +
// [user]. History may only carry user and assistant turns.
func BuildConversation(category, message string, history []llm.Message) ([]llm.Message, error) {
	for i, turn := range history {
		if turn.Role != llm.RoleUser && turn.Role != llm.RoleAssistant {
			return nil, validationError("invalid conversation history",
				fmt.Errorf("turn %d has role %q", i, turn.Role))
		}
	}
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: chatSystemPrompt(category)})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages, nil
}

func complete(ctx context.Context, client llm.Client, settings Settings, messages []llm.Message) (llm.Response, error) {
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}
	return client.Complete(ctx, messages, settings.Params)
}
