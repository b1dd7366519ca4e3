// Package proxy forwards verified JSON-RPC requests to the selected
// upstream provider, failing over through the rest of the pool.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"solgate/internal/jsonrpc"
	"solgate/internal/provider"
)

const upstreamTimeout = 30 * time.Second

// Response is the outcome of one forwarded call. Body is the upstream
// response verbatim; when every provider fails it is a synthesized JSON-RPC
// error envelope and ProviderID is empty.
type Response struct {
	Body       []byte
	ProviderID string
}

// Forwarder posts envelopes upstream. Selection and health bookkeeping live
// in the registry; the forwarder only moves bytes and reports outcomes.
type Forwarder struct {
	registry *provider.Registry
	client   *http.Client
	logger   *slog.Logger
}

// New creates a forwarder over the given registry.
func New(registry *provider.Registry, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		registry: registry,
		client:   &http.Client{Timeout: upstreamTimeout},
		logger:   logger,
	}
}

// Forward sends the raw envelope to the best provider for the method, then
// walks the remaining pool in registration order on failure. The body is
// never transformed in either direction. When the whole pool is down the
// caller still gets a well-formed JSON-RPC error envelope; by this point
// the payment is already spent, so there is nothing better to return.
func (f *Forwarder) Forward(ctx context.Context, req *jsonrpc.Request, rawBody []byte) Response {
	primary, err := f.registry.Select(req.Method, false)
	if err != nil {
		f.logger.Error("no upstream providers available", "method", req.Method)
		return f.unavailable(req)
	}

	for _, p := range f.registry.Ordered(primary.ID) {
		body, err := f.post(ctx, p.URL, rawBody)
		if err != nil {
			f.registry.ReportFailure(p.ID)
			f.logger.Warn("upstream call failed", "provider", p.ID,
				"method", req.Method, "error", err)
			continue
		}
		f.registry.ReportSuccess(p.ID)
		return Response{Body: body, ProviderID: p.ID}
	}

	f.logger.Error("all upstream providers failed", "method", req.Method)
	return f.unavailable(req)
}

func (f *Forwarder) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	return out, nil
}

func (f *Forwarder) unavailable(req *jsonrpc.Request) Response {
	return Response{
		Body: jsonrpc.MarshalErrorResponse(req.ID, jsonrpc.CodeInternalError,
			"all upstream providers unavailable"),
	}
}
