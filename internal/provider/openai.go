package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"summarist/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	OpenAIDefaultBaseURL = "https://api.openai.com/v1"
	OpenAIDefaultModel   = openai.ChatModelGPT4_1

	openAIKeyPrefix = "sk-"

	outputTypeMessage    = "message"
	contentTypeOutputTxt = "output_text"
)

type OpenAIConfig struct {
	BaseURL string
	Model   string
	Prompt  PromptOptions
}

// OpenAI talks to the Responses API.
type OpenAI struct {
	baseURL string
	model   string
	prompt  PromptOptions
}

type openAIOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIOutputItem struct {
	Type    string                `json:"type"`
	Content []openAIOutputContent `json:"content"`
}

type openAIResponse struct {
	Output []openAIOutputItem `json:"output"`
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = OpenAIDefaultModel
	}

	return &OpenAI{
		baseURL: baseURL,
		model:   model,
		prompt:  cfg.Prompt,
	}
}

func (a *OpenAI) Provider() domain.Provider {
	return domain.ProviderOpenAI
}

func (a *OpenAI) ValidateCredentialShape(credential string) bool {
	return strings.HasPrefix(credential, openAIKeyPrefix)
}

func (a *OpenAI) BuildRequest(req domain.SummaryRequest) (WireRequest, error) {
	params := responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(BuildPrompt(a.prompt, req.URL, req.Excerpt)),
		},
	}

	body, err := json.Marshal(params)
	if err != nil {
		return WireRequest{}, fmt.Errorf("marshal request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+req.Credential)

	if org := strings.TrimSpace(req.OrganizationID); org != "" {
		header.Set("OpenAI-Organization", org)
	}
	if project := strings.TrimSpace(req.ProjectID); project != "" {
		header.Set("OpenAI-Project", project)
	}

	return WireRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint(a.baseURL, "/responses"),
		Header:   header,
		Body:     body,
	}, nil
}

// ParseSuccess joins the output_text parts of message items. Untyped items
// are accepted as text as well.
func (a *OpenAI) ParseSuccess(raw []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "" && item.Type != outputTypeMessage {
			continue
		}

		for _, content := range item.Content {
			if content.Type != "" && content.Type != contentTypeOutputTxt {
				continue
			}
			b.WriteString(content.Text)
		}
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", errors.New("output text is missing")
	}

	return summary, nil
}

func (a *OpenAI) ClassifyFailure(status int, raw []byte) *domain.Failure {
	return classify(domain.ProviderOpenAI, status, errorMessage(raw))
}

// Verify lists models with the credential. The SDK's own retries are off so
// the broker stays the only place that retries.
func (a *OpenAI) Verify(ctx context.Context, client *http.Client, req domain.SummaryRequest) error {
	opts := []option.RequestOption{
		option.WithAPIKey(req.Credential),
		option.WithBaseURL(a.baseURL),
		option.WithMaxRetries(0),
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	if org := strings.TrimSpace(req.OrganizationID); org != "" {
		opts = append(opts, option.WithOrganization(org))
	}
	if project := strings.TrimSpace(req.ProjectID); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	sdk := openai.NewClient(opts...)

	if _, err := sdk.Models.List(ctx); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			message := strings.TrimSpace(apiErr.Message)
			if message == "" {
				message = "unknown error"
			}

			return classify(domain.ProviderOpenAI, apiErr.StatusCode, message)
		}

		return &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: domain.ProviderOpenAI,
			Err:      fmt.Errorf("list models: %w", err),
		}
	}

	return nil
}
