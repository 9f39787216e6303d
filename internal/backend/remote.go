package backend

import (
	"context"
	"errors"
	"fmt"

	"modelarena/internal/core"
	"modelarena/internal/util"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the OpenAI-compatible chat completion body.
type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) generateRemote(ctx context.Context, desc core.ModelDescriptor, prompt string) (string, error) {
	payload := chatCompletionRequest{
		Model:     desc.UpstreamModel(),
		Messages:  []chatMessage{{Role: core.RoleUser, Content: prompt}},
		Stream:    false,
		MaxTokens: desc.MaxTokens,
	}

	var headers map[string]string
	if desc.APIKeyEnv != "" {
		key := c.getenv(desc.APIKeyEnv)
		if key == "" {
			return "", fmt.Errorf("%s is not set", desc.APIKeyEnv)
		}
		headers = map[string]string{core.HeaderAuthorization: core.AuthBearerPrefix + key}
	}

	body, err := c.post(ctx, joinURL(desc.Endpoint, core.RemoteChatPath), payload, headers)
	if err != nil {
		return "", err
	}

	var resp chatCompletionResponse
	if err := util.UnmarshalJSON(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("remote backend error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
