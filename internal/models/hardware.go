package models

// GateAction is the command accepted by the hardware gate endpoint
type GateAction string

const (
	GateActionOpen  GateAction = "open"
	GateActionClose GateAction = "close"
)

// Valid reports whether the action is one the hardware understands
func (a GateAction) Valid() bool {
	return a == GateActionOpen || a == GateActionClose
}

// HardwareStatus is the body of GET {webhook}/status
type HardwareStatus struct {
	IsOnline            bool     `json:"is_online"`
	GateStatus          string   `json:"gate_status"` // open, closed
	ModelLoaded         bool     `json:"model_loaded"`
	ManualMode          bool     `json:"manual_mode"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

// GateRequest is the body of POST {webhook}/gate
type GateRequest struct {
	Action GateAction `json:"action"`
}

// GateResponse is the body returned by POST {webhook}/gate
type GateResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	GateStatus string `json:"gate_status"`
	ManualMode *bool  `json:"manual_mode,omitempty"`
}
