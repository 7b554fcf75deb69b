// ABOUTME: StreamRequest payload sent to the prompt-run endpoint
// ABOUTME: Variables and model config travel as nested JSON strings per the backend contract

package protocol

import (
	"encoding/json"
	"fmt"
)

// StreamRequest is the outbound payload for one prompt run. It is built once
// per turn from a snapshot of the instance's configuration.
//
// An empty SessionID asks the server to assign a new session; the assigned id
// comes back in a session_info record.
type StreamRequest struct {
	SessionID   string     `json:"sessionId"`
	PromptKey   string     `json:"promptKey"`
	Version     string     `json:"version"`
	Template    string     `json:"template"`
	Variables   string     `json:"variables"`   // JSON-encoded name→value map
	ModelConfig string     `json:"modelConfig"` // JSON-encoded model id plus parameters
	Message     string     `json:"message"`
	NewSession  bool       `json:"newSession"`
	MockTools   []MockTool `json:"mockTools,omitempty"`
}

// MockTool describes a stubbed tool definition forwarded to the backend for
// debugging prompts that reference tools.
type MockTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  string `json:"parameters,omitempty"`
	Response    string `json:"response,omitempty"`
}

// EncodeVariables serializes template variable values into the nested JSON
// string the backend expects. A nil map encodes as an empty object.
func EncodeVariables(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("encoding variables: %w", err)
	}
	return string(b), nil
}

// EncodeModelConfig serializes the model id and its parameters into the
// nested JSON string the backend expects. A "modelId" key inside params is
// ignored so it cannot shadow the explicit model id.
func EncodeModelConfig(modelID string, params map[string]any) (string, error) {
	cfg := make(map[string]any, len(params)+1)
	for k, v := range params {
		if k == "modelId" {
			continue
		}
		cfg[k] = v
	}
	cfg["modelId"] = modelID

	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding model config: %w", err)
	}
	return string(b), nil
}
