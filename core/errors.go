package core

import (
	"errors"
	"fmt"
)

// AgentError represents an operational error with a stable code and an
// actionable instruction for resolution.
type AgentError struct {
	Code    string `json:"code"`    // Error code for programmatic handling
	Message string `json:"message"` // Human-readable error message
	Action  string `json:"action"`  // Actionable instruction for resolution
}

func (e *AgentError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for agent errors
const (
	ErrCodeMissingConfig      = "MISSING_CONFIG"
	ErrCodeInvalidProviderURL = "INVALID_PROVIDER_URL"
	ErrCodeAuthFailed         = "AUTH_FAILED"
	ErrCodeAuthDegraded       = "AUTH_DEGRADED"
	ErrCodeTransport          = "TRANSPORT_ERROR"
	ErrCodePersistence        = "PERSISTENCE_ERROR"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
	ErrCodeNoData             = "NO_DATA"
)

// ErrMissingConfig returns an error for missing required configuration.
func ErrMissingConfig(varName string) *AgentError {
	return &AgentError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidProviderURL returns an error for a malformed provider base URL.
func ErrInvalidProviderURL(url string, reason string) *AgentError {
	return &AgentError{
		Code:    ErrCodeInvalidProviderURL,
		Message: fmt.Sprintf("Invalid MCP_BASE_URL '%s': %s", url, reason),
		Action:  "Set MCP_BASE_URL to a valid URL (e.g., https://fi-mcp.example.com)",
	}
}

// ErrAuthFailed returns an error when provider authentication fails outright.
func ErrAuthFailed(subject string, reason string) *AgentError {
	return &AgentError{
		Code:    ErrCodeAuthFailed,
		Message: fmt.Sprintf("Authentication failed for subject %s: %s", subject, reason),
		Action:  "Verify the subject is registered with the provider sandbox",
	}
}

// ErrAuthDegraded describes a synthetic-session fallback: the pipeline is
// still operating, but on a locally fabricated identity.
func ErrAuthDegraded(subject string) *AgentError {
	return &AgentError{
		Code:    ErrCodeAuthDegraded,
		Message: fmt.Sprintf("Operating on a synthetic session for subject %s", subject),
		Action:  "Check provider availability; collected records may be incomplete",
	}
}

// ErrTransport returns an error for a failed provider request.
func ErrTransport(operation string, err error) *AgentError {
	return &AgentError{
		Code:    ErrCodeTransport,
		Message: fmt.Sprintf("Provider request failed during %s: %v", operation, err),
		Action:  "Check that MCP_BASE_URL is correct and the provider is reachable. For self-signed certificates, set ALLOW_SELF_SIGNED_CERTS=true",
	}
}

// ErrPersistence returns an error for a failed database operation.
func ErrPersistence(operation string, err error) *AgentError {
	return &AgentError{
		Code:    ErrCodePersistence,
		Message: fmt.Sprintf("Database operation failed during %s: %v", operation, err),
		Action:  "Check DATABASE_PATH is writable and the disk has free space",
	}
}

// ErrQuotaExceeded returns an error when the quota ledger denies an operation.
func ErrQuotaExceeded(operation string, remaining int) *AgentError {
	return &AgentError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("Quota exhausted for %s (%d units remaining)", operation, remaining),
		Action:  "Wait for the hourly or daily quota window to reset, or raise the limits in tuning.yaml",
	}
}

// ErrNoData returns an error when an operation needs stored records and none exist.
func ErrNoData(subject string) *AgentError {
	return &AgentError{
		Code:    ErrCodeNoData,
		Message: fmt.Sprintf("No financial records stored for subject %s", subject),
		Action:  "Run a collection first (POST /api/collect)",
	}
}

// IsAgentError checks if an error is an AgentError and returns it if so.
func IsAgentError(err error) (*AgentError, bool) {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's an AgentError.
func GetErrorCode(err error) string {
	if agentErr, ok := IsAgentError(err); ok {
		return agentErr.Code
	}
	return ""
}
