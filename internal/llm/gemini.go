package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

const providerGemini = "gemini"

// GeminiClient talks to the Gemini API. Presence and frequency penalties are
// not forwarded.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message, params Params) (Response, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(params.Temperature)
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}

	var system []genai.Part
	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, genai.Text(m.Content))
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}

	if len(history) == 0 || history[len(history)-1].Role != "user" {
		return Response{}, &Error{Kind: KindUnknown, Provider: providerGemini, Err: errors.New("last message must come from the user")}
	}
	last := history[len(history)-1]

	chatSession := model.StartChat()
	chatSession.History = history[:len(history)-1]

	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, &Error{Kind: KindUnknown, Provider: providerGemini, Err: errors.New("no candidates in response")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			slog.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	if responseText.Len() == 0 {
		return Response{}, &Error{Kind: KindUnknown, Provider: providerGemini, Err: errors.New("empty text response")}
	}

	out := Response{Content: responseText.String(), Model: c.model}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

// classifyGeminiError handles both the gRPC (apierror) and REST (googleapi)
// error shapes the SDK can surface.
func classifyGeminiError(err error) *Error {
	out := &Error{Kind: KindUnknown, Provider: providerGemini, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		out.Kind = KindTimeout
		return out
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.GRPCStatus().Code()
		switch {
		case code == codes.ResourceExhausted || apiErr.HTTPCode() == http.StatusTooManyRequests:
			out.Kind = KindRateLimited
		case code == codes.DeadlineExceeded:
			out.Kind = KindTimeout
		case code == codes.InvalidArgument && mentionsTokenLimit(apiErr.Error()):
			out.Kind = KindContextLength
		}
		return out
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == http.StatusTooManyRequests:
			out.Kind = KindRateLimited
		case gErr.Code == http.StatusBadRequest && mentionsTokenLimit(gErr.Message):
			out.Kind = KindContextLength
		}
	}
	return out
}

func mentionsTokenLimit(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "token") && (strings.Contains(msg, "limit") || strings.Contains(msg, "exceed"))
}
