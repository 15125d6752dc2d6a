package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const maxErrorBody = 512

// HTTPOption configures the HTTP-backed senders.
type HTTPOption func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *httpClient) {
		h.client = c
	}
}

type httpClient struct {
	client *http.Client
}

func newHTTPClient(opts []HTTPOption) httpClient {
	h := httpClient{
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// postJSON sends payload as JSON and classifies the response.
func (h httpClient) postJSON(
	ctx context.Context,
	ch domain.Channel,
	url string,
	payload any,
	header http.Header,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent(ch, fmt.Errorf("marshaling %s payload: %w", ch, err))
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return h.do(ctx, ch, url, body, header)
}

func (h httpClient) do(
	ctx context.Context,
	ch domain.Channel,
	url string,
	body []byte,
	header http.Header,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Permanent(ch, fmt.Errorf("creating %s request: %w", ch, err))
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s request: %w", ch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(ch, resp.StatusCode, string(respBody))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
