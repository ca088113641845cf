package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, params Params) (Response, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:            c.model,
		Messages:         oaMsgs,
		Temperature:      params.Temperature,
		MaxTokens:        params.MaxTokens,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &Error{Kind: KindUnknown, Provider: providerOpenAI, Err: errors.New("no choices in response")}
	}

	return Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// classifyOpenAIError maps go-openai error shapes onto error kinds.
func classifyOpenAIError(err error) *Error {
	out := &Error{Kind: KindUnknown, Provider: providerOpenAI, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	case errors.As(err, &apiErr):
		code := fmt.Sprint(apiErr.Code)
		switch {
		case code == "context_length_exceeded":
			out.Kind = KindContextLength
		case code == "rate_limit_exceeded" || apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			out.Kind = KindRateLimited
		}
	case errors.As(err, &reqErr):
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			out.Kind = KindRateLimited
		}
	}
	return out
}
