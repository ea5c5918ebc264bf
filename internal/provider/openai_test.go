package provider

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"summarist/internal/domain"
)

func TestOpenAIValidateCredentialShape(t *testing.T) {
	a := NewOpenAI(OpenAIConfig{})

	if !a.ValidateCredentialShape("sk-proj-abc") {
		t.Fatalf("expected sk- key to be accepted")
	}
	if !a.ValidateCredentialShape("sk-ant-abc") {
		t.Fatalf("expected sk-ant- key to pass the general prefix check")
	}
	if a.ValidateCredentialShape("pk-abc") || a.ValidateCredentialShape("") {
		t.Fatalf("expected malformed keys to be rejected")
	}
}

func TestOpenAIBuildRequest(t *testing.T) {
	a := NewOpenAI(OpenAIConfig{BaseURL: "https://example.test/v1/", Model: "gpt-test"})

	wire, err := a.BuildRequest(domain.SummaryRequest{
		URL:            "https://news.example/article",
		Provider:       domain.ProviderOpenAI,
		Credential:     "sk-secret",
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
	})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if wire.Method != http.MethodPost {
		t.Fatalf("unexpected method: %s", wire.Method)
	}
	if wire.Endpoint != "https://example.test/v1/responses" {
		t.Fatalf("unexpected endpoint: %s", wire.Endpoint)
	}
	if got := wire.Header.Get("Authorization"); got != "Bearer sk-secret" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
	if got := wire.Header.Get("OpenAI-Organization"); got != "org-1" {
		t.Fatalf("unexpected organization header: %q", got)
	}
	if got := wire.Header.Get("OpenAI-Project"); got != "proj-1" {
		t.Fatalf("unexpected project header: %q", got)
	}

	var body struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}
	if err = json.Unmarshal(wire.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Model != "gpt-test" {
		t.Fatalf("unexpected model: %q", body.Model)
	}
	if !strings.Contains(body.Input, "https://news.example/article") {
		t.Fatalf("expected prompt to reference the URL, got %q", body.Input)
	}
}

func TestOpenAIBuildRequestOmitsEmptyOptionalHeaders(t *testing.T) {
	a := NewOpenAI(OpenAIConfig{})

	wire, err := a.BuildRequest(domain.SummaryRequest{URL: "https://a.example", Credential: "sk-x"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if _, ok := wire.Header["Openai-Organization"]; ok {
		t.Fatalf("expected no organization header")
	}
	if _, ok := wire.Header["Openai-Project"]; ok {
		t.Fatalf("expected no project header")
	}
	if wire.Endpoint != OpenAIDefaultBaseURL+"/responses" {
		t.Fatalf("unexpected default endpoint: %s", wire.Endpoint)
	}
}

func TestOpenAIParseSuccess(t *testing.T) {
	a := NewOpenAI(OpenAIConfig{})

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "bare envelope is trimmed",
			raw:  `{"output":[{"content":[{"text":"  Hello world  "}]}]}`,
			want: "Hello world",
		},
		{
			name: "reasoning item is skipped",
			raw: `{"output":[{"type":"reasoning","content":[]},` +
				`{"type":"message","content":[{"type":"output_text","text":"Summary."}]}]}`,
			want: "Summary.",
		},
		{
			name:    "no text",
			raw:     `{"output":[]}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			raw:     `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.ParseSuccess([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyFailure(t *testing.T) {
	adapters := []Adapter{NewOpenAI(OpenAIConfig{}), NewAnthropic(AnthropicConfig{})}

	tests := []struct {
		status int
		want   domain.FailureKind
	}{
		{http.StatusUnauthorized, domain.FailureAuthentication},
		{http.StatusTooManyRequests, domain.FailureRateLimited},
		{http.StatusBadRequest, domain.FailureBadRequest},
		{http.StatusInternalServerError, domain.FailureUnknown},
		{http.StatusForbidden, domain.FailureUnknown},
	}

	raw := []byte(`{"error":{"type":"x","message":"boom"}}`)

	for _, a := range adapters {
		for _, tt := range tests {
			f := a.ClassifyFailure(tt.status, raw)
			if f.Kind != tt.want {
				t.Fatalf("%s status %d: got %s, want %s", a.Provider(), tt.status, f.Kind, tt.want)
			}
			if f.Status != tt.status || f.Provider != a.Provider() {
				t.Fatalf("unexpected failure metadata: %+v", f)
			}
			if !strings.Contains(f.Message, "boom") {
				t.Fatalf("expected provider message to be kept, got %q", f.Message)
			}
		}
	}
}

func TestClassifyBadRequestHintsAtFormat(t *testing.T) {
	f := NewOpenAI(OpenAIConfig{}).ClassifyFailure(http.StatusBadRequest, []byte("not json"))

	if !strings.Contains(f.Message, "request format") {
		t.Fatalf("expected request format hint, got %q", f.Message)
	}
	if !strings.HasPrefix(f.Message, "unknown error") {
		t.Fatalf("expected fallback message for unparsable body, got %q", f.Message)
	}
}
