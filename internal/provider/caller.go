package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"summarist/internal/domain"
	"summarist/internal/metrics"
)

const (
	DefaultHTTPTimeout = 2 * time.Minute
	maxResponseBytes   = 4 << 20
)

// Caller performs exactly one HTTP round trip per dispatch with the adapter
// selected by the request's provider.
type Caller struct {
	client   *http.Client
	adapters map[domain.Provider]Adapter
	log      *slog.Logger
}

func NewCaller(client *http.Client, log *slog.Logger, adapters ...Adapter) *Caller {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	m := make(map[domain.Provider]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}

	return &Caller{
		client:   client,
		adapters: m,
		log:      log,
	}
}

// Precheck runs the local checks that never touch the network.
func (c *Caller) Precheck(req domain.SummaryRequest) error {
	_, err := c.adapter(req)
	return err
}

func (c *Caller) Dispatch(ctx context.Context, attempt domain.Attempt) (string, error) {
	req := attempt.Request

	a, err := c.adapter(req)
	if err != nil {
		return "", err
	}

	c.log.DebugContext(ctx, "Dispatching provider request",
		"provider", req.Provider.String(),
		"operation", req.Operation.String(),
		"attempt", attempt.Number,
		"credential", domain.MaskSecret(req.Credential),
		"url", req.URL)

	start := time.Now()
	defer func() {
		metrics.ProviderCallDuration.WithLabelValues(req.Provider.String()).Observe(time.Since(start).Seconds())
	}()

	if req.Operation == domain.OperationVerify {
		return "", c.verify(ctx, a, req)
	}

	wire, err := a.BuildRequest(req)
	if err != nil {
		return "", &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: req.Provider,
			Err:      fmt.Errorf("build request: %w", err),
		}
	}

	raw, err := roundTrip(ctx, c.client, a, wire)
	if err != nil {
		return "", err
	}

	summary, err := a.ParseSuccess(raw)
	if err != nil {
		return "", &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: req.Provider,
			Err:      fmt.Errorf("parse response: %w", err),
		}
	}

	return summary, nil
}

func (c *Caller) verify(ctx context.Context, a Adapter, req domain.SummaryRequest) error {
	v, ok := a.(Verifier)
	if !ok {
		return &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: req.Provider,
			Message:  "credential verification is not supported",
		}
	}

	return v.Verify(ctx, c.client, req)
}

func (c *Caller) adapter(req domain.SummaryRequest) (Adapter, error) {
	a, ok := c.adapters[req.Provider]
	if !ok {
		return nil, &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: req.Provider,
			Message:  "provider is not configured",
		}
	}

	if !a.ValidateCredentialShape(req.Credential) {
		return nil, invalidCredentialFormat(req.Provider, credentialPrefix(req.Provider))
	}

	return a, nil
}

func credentialPrefix(p domain.Provider) string {
	if p == domain.ProviderAnthropic {
		return anthropicKeyPrefix
	}
	return openAIKeyPrefix
}

// roundTrip sends wire and returns the body of a 2xx response. Every other
// outcome comes back as a classified *domain.Failure.
func roundTrip(ctx context.Context, client *http.Client, a Adapter, wire WireRequest) ([]byte, error) {
	method := wire.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, wire.Endpoint, bytes.NewReader(wire.Body))
	if err != nil {
		return nil, &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: a.Provider(),
			Err:      fmt.Errorf("create request: %w", err),
		}
	}
	for key, values := range wire.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: a.Provider(),
			Err:      fmt.Errorf("do request: %w", err),
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &domain.Failure{
			Kind:     domain.FailureUnknown,
			Provider: a.Provider(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("read response: %w", err),
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, a.ClassifyFailure(resp.StatusCode, raw)
	}

	return raw, nil
}
