package schema

// ExecuteRequest is the wire format for a single resolve-and-execute call.
type ExecuteRequest struct {
	Prompt    string         `json:"prompt"`
	SessionID string         `json:"session_id"`
	Params    map[string]any `json:"params,omitempty"`
}

// ExecuteResponse echoes the matched action, its outcome, a ready-to-run
// invocation snippet and the full session history.
type ExecuteResponse struct {
	Function       string   `json:"function"`
	Output         any      `json:"output"`
	Code           string   `json:"code,omitempty"`
	SessionHistory []string `json:"session_history"`
}

// BatchExecuteRequest is the wire format for multi-prompt execution.
type BatchExecuteRequest struct {
	Prompts   []string `json:"prompts"`
	SessionID string   `json:"session_id"`
}

// BatchResult is one per-prompt entry of a batch response. Function and Code
// are null when the prompt did not resolve to any action.
type BatchResult struct {
	Function *string `json:"function"`
	Output   any     `json:"output"`
	Code     *string `json:"code"`
}

// BatchExecuteResponse preserves input order: one result per prompt.
type BatchExecuteResponse struct {
	SessionHistory []string      `json:"session_history"`
	Results        []BatchResult `json:"results"`
}
