package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"go-summarizer/internal/config"
)

// ListModels asks the upstream which models it serves: /api/tags next to the
// generate endpoint, or GET {base}/models for the openai style.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.api == config.APIOpenAI {
		return c.listChatModels(ctx)
	}
	return c.listTags(ctx)
}

// CheckModel reports whether the configured model is among ListModels.
// Ollama tags without an explicit version match ":latest".
func (c *Client) CheckModel(ctx context.Context) (bool, []string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, nil, err
	}
	for _, m := range models {
		if m == c.model || m == c.model+":latest" {
			return true, models, nil
		}
	}
	return false, models, nil
}

func (c *Client) listTags(ctx context.Context) ([]string, error) {
	tagsURL, err := tagsEndpoint(c.endpoint)
	if err != nil {
		return nil, err
	}

	client, release := c.httpClient()
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: HTTP %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) listChatModels(ctx context.Context) ([]string, error) {
	client, release := c.httpClient()
	defer release()

	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = c.endpoint
	cfg.HTTPClient = client

	list, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

// tagsEndpoint maps http://host:11434/api/generate to http://host:11434/api/tags.
func tagsEndpoint(generateURL string) (string, error) {
	u, err := url.Parse(generateURL)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/generate") {
		path = strings.TrimSuffix(path, "/generate") + "/tags"
	} else {
		path = "/api/tags"
	}
	u.Path = path
	u.RawQuery = ""
	return u.String(), nil
}
