package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"summarist/internal/domain"
)

func newTestCaller(baseURL string) *Caller {
	return NewCaller(
		&http.Client{Timeout: 5 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewOpenAI(OpenAIConfig{BaseURL: baseURL}),
		NewAnthropic(AnthropicConfig{BaseURL: baseURL}),
	)
}

func attempt(req domain.SummaryRequest) domain.Attempt {
	return domain.Attempt{Request: req, Number: 1, DispatchedAt: time.Now()}
}

func TestCallerDispatchOpenAISuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header: %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output":[{"content":[{"text":"  Hello world  "}]}]}`)
	}))
	defer srv.Close()

	c := newTestCaller(srv.URL)

	got, err := c.Dispatch(context.Background(), attempt(domain.SummaryRequest{
		URL:        "https://a.example",
		Provider:   domain.ProviderOpenAI,
		Credential: "sk-test",
	}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestCallerDispatchAnthropicSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"Short."}]}`)
	}))
	defer srv.Close()

	got, err := newTestCaller(srv.URL).Dispatch(context.Background(), attempt(domain.SummaryRequest{
		URL:        "https://a.example",
		Provider:   domain.ProviderAnthropic,
		Credential: "sk-ant-test",
	}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != "Short." {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestCallerDispatchClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   domain.FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, domain.FailureAuthentication},
		{"rate limited", http.StatusTooManyRequests, domain.FailureRateLimited},
		{"bad request", http.StatusBadRequest, domain.FailureBadRequest},
		{"server error", http.StatusBadGateway, domain.FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := newTestCaller(srv.URL).Dispatch(context.Background(), attempt(domain.SummaryRequest{
				Provider:   domain.ProviderAnthropic,
				Credential: "sk-ant-test",
			}))
			if got := domain.KindOf(err); got != tt.want {
				t.Fatalf("got %s, want %s (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestCallerDispatchNetworkFailureIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	_, err := newTestCaller(baseURL).Dispatch(context.Background(), attempt(domain.SummaryRequest{
		Provider:   domain.ProviderOpenAI,
		Credential: "sk-test",
	}))
	if err == nil {
		t.Fatalf("expected network error")
	}
	if got := domain.KindOf(err); got != domain.FailureUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
}

func TestCallerInvalidCredentialMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestCaller(srv.URL)
	req := domain.SummaryRequest{Provider: domain.ProviderAnthropic, Credential: "sk-proj-abc"}

	if got := domain.KindOf(c.Precheck(req)); got != domain.FailureInvalidCredentialFormat {
		t.Fatalf("Precheck: got %s", got)
	}

	_, err := c.Dispatch(context.Background(), attempt(req))
	if got := domain.KindOf(err); got != domain.FailureInvalidCredentialFormat {
		t.Fatalf("Dispatch: got %s", got)
	}

	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestCallerUnconfiguredProvider(t *testing.T) {
	c := NewCaller(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), NewOpenAI(OpenAIConfig{}))

	err := c.Precheck(domain.SummaryRequest{Provider: domain.ProviderAnthropic, Credential: "sk-ant-x"})
	if err == nil {
		t.Fatalf("expected error for unconfigured provider")
	}
}

func TestCallerVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/models":
			if r.Header.Get("Authorization") != "Bearer sk-good" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"object":"list","data":[]}`)
		case "/messages":
			if r.Header.Get("x-api-key") != "sk-ant-good" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":{"message":"invalid x-api-key"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"Hi"}]}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestCaller(srv.URL)

	tests := []struct {
		name       string
		provider   domain.Provider
		credential string
		want       domain.FailureKind
		wantErr    bool
	}{
		{"openai valid", domain.ProviderOpenAI, "sk-good", 0, false},
		{"openai invalid", domain.ProviderOpenAI, "sk-bad", domain.FailureAuthentication, true},
		{"anthropic valid", domain.ProviderAnthropic, "sk-ant-good", 0, false},
		{"anthropic invalid", domain.ProviderAnthropic, "sk-ant-bad", domain.FailureAuthentication, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Dispatch(context.Background(), attempt(domain.SummaryRequest{
				Operation:  domain.OperationVerify,
				Provider:   tt.provider,
				Credential: tt.credential,
			}))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr && domain.KindOf(err) != tt.want {
				t.Fatalf("got %s, want %s", domain.KindOf(err), tt.want)
			}
		})
	}
}
