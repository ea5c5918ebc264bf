package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"summarist/internal/domain"
)

// Adapter translates provider-neutral requests into one provider's wire
// format and back. Adapters never perform retries.
type Adapter interface {
	Provider() domain.Provider
	ValidateCredentialShape(credential string) bool
	BuildRequest(req domain.SummaryRequest) (WireRequest, error)
	ParseSuccess(raw []byte) (string, error)
	ClassifyFailure(status int, raw []byte) *domain.Failure
}

// Verifier checks that a credential is accepted by the remote API.
type Verifier interface {
	Verify(ctx context.Context, client *http.Client, req domain.SummaryRequest) error
}

type WireRequest struct {
	Method   string
	Endpoint string
	Header   http.Header
	Body     []byte
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorMessage(raw []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || strings.TrimSpace(env.Error.Message) == "" {
		return "unknown error"
	}

	return strings.TrimSpace(env.Error.Message)
}

func classify(p domain.Provider, status int, message string) *domain.Failure {
	f := &domain.Failure{
		Provider: p,
		Status:   status,
		Message:  message,
	}

	switch status {
	case http.StatusUnauthorized:
		f.Kind = domain.FailureAuthentication
		f.Message = "authentication failed: " + message
	case http.StatusTooManyRequests:
		f.Kind = domain.FailureRateLimited
		f.Message = "rate limited: " + message
	case http.StatusBadRequest:
		f.Kind = domain.FailureBadRequest
		f.Message = message + ". This might be an issue with the request format"
	default:
		f.Kind = domain.FailureUnknown
	}

	return f
}

func invalidCredentialFormat(p domain.Provider, prefix string) *domain.Failure {
	return &domain.Failure{
		Kind:     domain.FailureInvalidCredentialFormat,
		Provider: p,
		Message:  "invalid API key format, " + p.String() + " API keys should start with \"" + prefix + "\"",
	}
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
