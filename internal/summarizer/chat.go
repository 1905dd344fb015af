package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// callChat sends the prompt as a single user message to an OpenAI-compatible
// chat completions endpoint (Ollama serves one under /v1).
func (c *Client) callChat(ctx context.Context, prompt string) Result {
	client, release := c.httpClient()
	defer release()

	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = c.endpoint
	cfg.HTTPClient = client

	resp, err := openai.NewClientWithConfig(cfg).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
		Stream: false,
	})
	if err != nil {
		return classifyChatError(err)
	}
	if len(resp.Choices) == 0 {
		return Result{Outcome: OutcomeNoSummary}
	}
	return Result{Outcome: OutcomeSummary, Summary: resp.Choices[0].Message.Content}
}

func classifyChatError(err error) Result {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return Result{Outcome: OutcomeUpstreamStatus, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return Result{Outcome: OutcomeUpstreamStatus, StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Result{Outcome: OutcomeInvalidJSON}
	}
	return unreachable(err)
}
