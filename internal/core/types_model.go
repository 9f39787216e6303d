package core

import "time"

// BackendKind identifies which transport a model backend speaks.
type BackendKind string

// Supported backend kinds.
const (
	BackendLocal  BackendKind = "local"
	BackendRemote BackendKind = "remote"
)

// ModelDescriptor describes one model entered into arena battles.
// Descriptors are loaded once at startup and never mutated.
type ModelDescriptor struct {
	ID             string      `json:"id" yaml:"id"`
	DisplayName    string      `json:"display_name" yaml:"display_name"`
	Backend        BackendKind `json:"backend" yaml:"backend"`
	Endpoint       string      `json:"endpoint" yaml:"endpoint"`
	Model          string      `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv      string      `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	TimeoutSeconds float64     `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	Label          string      `json:"label,omitempty" yaml:"label,omitempty"`
	MaxTokens      int         `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Disabled       bool        `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Timeout returns the per-call timeout, falling back to the kind default.
func (d ModelDescriptor) Timeout() time.Duration {
	if d.TimeoutSeconds > 0 {
		return time.Duration(d.TimeoutSeconds * float64(time.Second))
	}
	if d.Backend == BackendLocal {
		return DefaultLocalTimeout
	}
	return DefaultRemoteTimeout
}

// UpstreamModel returns the model name sent to the backend.
func (d ModelDescriptor) UpstreamModel() string {
	if d.Model != "" {
		return d.Model
	}
	return d.ID
}

// ModelsConfig holds the model list loaded from the models file.
type ModelsConfig struct {
	Models []ModelDescriptor `json:"models" yaml:"models"`
}

// PublicModel is the view of a descriptor exposed over the API.
// Endpoint and credential details stay server-side.
type PublicModel struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Backend     BackendKind `json:"backend"`
	Label       string      `json:"label"`
}
