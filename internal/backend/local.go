package backend

import (
	"context"
	"fmt"

	"modelarena/internal/core"
	"modelarena/internal/util"
)

// localGenerateRequest is the Ollama-compatible /api/generate body.
type localGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options *localOptions `json:"options,omitempty"`
}

type localOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type localGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) generateLocal(ctx context.Context, desc core.ModelDescriptor, prompt string) (string, error) {
	payload := localGenerateRequest{
		Model:  desc.UpstreamModel(),
		Prompt: prompt,
		Stream: false,
	}
	if desc.MaxTokens > 0 {
		payload.Options = &localOptions{NumPredict: desc.MaxTokens}
	}

	body, err := c.post(ctx, joinURL(desc.Endpoint, core.LocalGeneratePath), payload, nil)
	if err != nil {
		return "", err
	}

	var resp localGenerateResponse
	if err := util.UnmarshalJSON(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode local response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("local backend error: %s", resp.Error)
	}
	return resp.Response, nil
}
