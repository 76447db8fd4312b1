package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/focuserd/internal/api"
	"github.com/nerrad567/focuserd/internal/focuser"
)

// maxResponseSize bounds how much of a daemon response is read.
const maxResponseSize = 4 << 20

// resultError reports a command that did not return Succeeded. Its message
// is the operator label for the result.
type resultError struct {
	result focuser.Result
	cause  error
}

func (e *resultError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%v)", e.result, e.cause)
	}
	return e.result.String()
}

func (e *resultError) Unwrap() error { return e.cause }

// apiError is a non-2xx response from the daemon.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("daemon returned HTTP %d", e.status)
	}
	return fmt.Sprintf("daemon returned HTTP %d: %s", e.status, e.message)
}

// daemonClient talks to the focuserd HTTP API.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

func newDaemonClient(baseURL string, timeout time.Duration) *daemonClient {
	return &daemonClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{Timeout: timeout},
	}
}

// command posts a command and returns its result. Any transport failure is
// reported as CommunicationFailed.
func (c *daemonClient) command(ctx context.Context, path string, body any) (api.CommandResponse, error) {
	var resp api.CommandResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return resp, err
		}
		resp = api.CommandResponse{
			Result: int(focuser.CommunicationFailed),
			Label:  focuser.CommunicationFailed.String(),
		}
		return resp, &resultError{result: focuser.CommunicationFailed, cause: err}
	}
	if result := focuser.Result(resp.Result); result != focuser.Succeeded {
		return resp, &resultError{result: result}
	}
	return resp, nil
}

func (c *daemonClient) status(ctx context.Context) (*focuser.Status, error) {
	var status focuser.Status
	if err := c.get(ctx, "/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *daemonClient) temperatureLabels(ctx context.Context) (map[string]string, error) {
	labels := make(map[string]string)
	if err := c.get(ctx, "/temperature-labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// get wraps transport failures in a CommunicationFailed resultError so
// read commands report an unreachable daemon the same way commands do.
func (c *daemonClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	err := c.do(ctx, http.MethodGet, path, nil, out)
	var apiErr *apiError
	if err != nil && !errors.As(err, &apiErr) {
		return &resultError{result: focuser.CommunicationFailed, cause: err}
	}
	return err
}

func (c *daemonClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErrBody api.Error
		//nolint:errcheck // Body may not be JSON; fall back to the status code
		json.Unmarshal(data, &apiErrBody)
		return &apiError{status: resp.StatusCode, message: apiErrBody.Message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
