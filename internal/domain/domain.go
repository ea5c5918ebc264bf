package domain

import (
	"fmt"
	"strings"
	"time"
)

type Provider int

const (
	ProviderOpenAI Provider = iota + 1
	ProviderAnthropic
)

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// ParseProvider accepts the lowercase names returned by String.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return 0, fmt.Errorf("unknown provider %q", s)
	}
}

type Operation int

const (
	OperationSummarize Operation = iota
	OperationVerify
)

func (o Operation) String() string {
	if o == OperationVerify {
		return "verify"
	}
	return "summarize"
}

type SummaryRequest struct {
	Operation      Operation
	URL            string
	Provider       Provider
	Credential     string
	OrganizationID string
	ProjectID      string
	// Excerpt is optional extracted article text sent along with the URL.
	Excerpt string
}

// Attempt is one dispatch of a request. Number starts at 1.
type Attempt struct {
	Request      SummaryRequest
	Number       int
	DispatchedAt time.Time
}

type Result struct {
	Summary string
	Err     error
}

func (r Result) Success() bool {
	return r.Err == nil
}

type CredentialStatus string

const (
	CredentialStatusUnknown CredentialStatus = "unknown"
	CredentialStatusValid   CredentialStatus = "valid"
	CredentialStatusInvalid CredentialStatus = "invalid"
)

type Credential struct {
	UserID         int64
	Provider       Provider
	Secret         string
	OrganizationID string
	ProjectID      string
	Status         CredentialStatus
	UpdatedAt      time.Time
}

type Summary struct {
	UserID    int64
	URL       string
	Text      string
	CreatedAt time.Time
}

// MaskSecret keeps only enough of a credential to tell keys apart in logs.
func MaskSecret(secret string) string {
	const visible = 4

	if len(secret) <= 2*visible {
		return strings.Repeat("*", len(secret))
	}

	return secret[:visible] + "..." + secret[len(secret)-visible:]
}
