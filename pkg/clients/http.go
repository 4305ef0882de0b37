package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// maxResponseBytes bounds how much of a service response we will read.
const maxResponseBytes = 8 << 20

// httpDoer lets tests substitute the transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// newHTTPClient builds the shared pooled client used by all adapters.
// The per-call timeout comes from the request context, not the client.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// authToken reads a bearer token from the environment. Empty is fine:
// credential handling is outside the core.
func authToken(envKey string) string {
	return os.Getenv(envKey)
}

// postJSON issues a JSON POST with a per-call timeout and decodes the
// response into out. Non-2xx statuses and transport failures come back
// as *ServiceError. Retryable failures are retried once.
func postJSON(ctx context.Context, doer httpDoer, service, url, token string, timeout time.Duration, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &ServiceError{Service: service, Kind: KindInvalidResponse, Err: fmt.Errorf("encode request: %w", err)}
	}

	err = doPost(ctx, doer, service, url, token, timeout, body, out)
	var se *ServiceError
	if err != nil && errors.As(err, &se) && se.Retryable() && ctx.Err() == nil {
		err = doPost(ctx, doer, service, url, token, timeout, body, out)
	}
	return err
}

func doPost(ctx context.Context, doer httpDoer, service, url, token string, timeout time.Duration, body []byte, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &ServiceError{Service: service, Kind: KindUpstreamError, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := doer.Do(req)
	if err != nil {
		// The caller's context being done means cancellation, not a
		// service timeout — surface it unclassified so the workflow
		// can distinguish abort from degradation.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ServiceError{Service: service, Kind: classifyTransportErr(callCtx.Err()), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ServiceError{Service: service, Kind: KindUpstreamError, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{
			Service: service,
			Kind:    classifyHTTPStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s", firstLine(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ServiceError{Service: service, Kind: KindInvalidResponse, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// firstLine trims an error body down to something loggable.
func firstLine(data []byte) string {
	const max = 200
	s := string(data)
	for i, r := range s {
		if r == '\n' || i >= max {
			return s[:i]
		}
	}
	return s
}
