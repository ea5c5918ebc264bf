package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"summarist/internal/domain"
)

const (
	AnthropicDefaultBaseURL   = "https://api.anthropic.com/v1"
	AnthropicDefaultModel     = "claude-3-haiku-20240307"
	AnthropicDefaultVersion   = "2023-06-01"
	AnthropicDefaultMaxTokens = 4000

	anthropicKeyPrefix       = "sk-ant-"
	anthropicVerifyMaxTokens = 10
	anthropicVerifyPrompt    = "Hello"
	contentTypeText          = "text"
)

type AnthropicConfig struct {
	BaseURL   string
	Model     string
	Version   string
	MaxTokens int
	Prompt    PromptOptions
}

// Anthropic talks to the Messages API.
type Anthropic struct {
	baseURL   string
	model     string
	version   string
	maxTokens int
	prompt    PromptOptions
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	a := &Anthropic{
		baseURL:   strings.TrimSpace(cfg.BaseURL),
		model:     strings.TrimSpace(cfg.Model),
		version:   strings.TrimSpace(cfg.Version),
		maxTokens: cfg.MaxTokens,
		prompt:    cfg.Prompt,
	}

	if a.baseURL == "" {
		a.baseURL = AnthropicDefaultBaseURL
	}
	if a.model == "" {
		a.model = AnthropicDefaultModel
	}
	if a.version == "" {
		a.version = AnthropicDefaultVersion
	}
	if a.maxTokens <= 0 {
		a.maxTokens = AnthropicDefaultMaxTokens
	}

	return a
}

func (a *Anthropic) Provider() domain.Provider {
	return domain.ProviderAnthropic
}

func (a *Anthropic) ValidateCredentialShape(credential string) bool {
	return strings.HasPrefix(credential, anthropicKeyPrefix)
}

// BuildRequest ignores organization and project: the API has no such concept.
func (a *Anthropic) BuildRequest(req domain.SummaryRequest) (WireRequest, error) {
	return a.messagesRequest(req.Credential, BuildPrompt(a.prompt, req.URL, req.Excerpt), a.maxTokens)
}

func (a *Anthropic) ParseSuccess(raw []byte) (string, error) {
	var resp anthropicMessagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type != "" && block.Type != contentTypeText {
			continue
		}
		b.WriteString(block.Text)
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", errors.New("response content is empty")
	}

	return summary, nil
}

func (a *Anthropic) ClassifyFailure(status int, raw []byte) *domain.Failure {
	return classify(domain.ProviderAnthropic, status, errorMessage(raw))
}

// Verify sends a tiny message; the API has no cheaper authenticated endpoint
// shared by all key types.
func (a *Anthropic) Verify(ctx context.Context, client *http.Client, req domain.SummaryRequest) error {
	wire, err := a.messagesRequest(req.Credential, anthropicVerifyPrompt, anthropicVerifyMaxTokens)
	if err != nil {
		return err
	}

	_, err = roundTrip(ctx, client, a, wire)

	return err
}

func (a *Anthropic) messagesRequest(credential, prompt string, maxTokens int) (WireRequest, error) {
	body, err := json.Marshal(anthropicMessagesRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return WireRequest{}, fmt.Errorf("marshal request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-api-key", credential)
	header.Set("anthropic-version", a.version)

	return WireRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint(a.baseURL, "/messages"),
		Header:   header,
		Body:     body,
	}, nil
}
