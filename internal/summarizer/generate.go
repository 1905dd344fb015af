package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// generateRequest is the Ollama /api/generate payload.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func (c *Client) callGenerate(ctx context.Context, prompt string) Result {
	payload, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return unreachable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return unreachable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client, release := c.httpClient()
	defer release()

	resp, err := client.Do(req)
	if err != nil {
		return unreachable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return unreachable(err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{Outcome: OutcomeUpstreamStatus, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return parseGenerateResponse(body)
}

// parseGenerateResponse extracts the "response" field from a 200 body.
// Strings come back verbatim, null as "", anything else as compact JSON.
// A body that is valid JSON but not an object has no response field.
func parseGenerateResponse(body []byte) Result {
	if !json.Valid(body) {
		return Result{Outcome: OutcomeInvalidJSON}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Result{Outcome: OutcomeNoSummary}
	}
	raw, ok := fields["response"]
	if !ok {
		return Result{Outcome: OutcomeNoSummary}
	}

	var s string
	switch {
	case bytes.Equal(raw, []byte("null")):
	case len(raw) > 0 && raw[0] == '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return Result{Outcome: OutcomeInvalidJSON}
		}
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Result{Outcome: OutcomeInvalidJSON}
		}
		s = buf.String()
	}
	return Result{Outcome: OutcomeSummary, Summary: s}
}
