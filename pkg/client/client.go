// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client is the Go client of the simulator API.
//
// # Error Taxonomy
//
// Every failure is an *Error whose Type says where it happened:
//
//   - ErrorTransport: the request never got an HTTP response
//   - ErrorStatus: the server answered with a non-2xx status
//   - ErrorApplication: a 2xx body carried success=false
//   - ErrorInvalidResponse: the body could not be decoded
//   - ErrorCanceled: the caller's context ended first
//
// Callers that only show a message can use err.Error() for all of them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/rebirthsim/pkg/telemetry"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// ErrorType categorizes client failures for programmatic handling.
type ErrorType int

const (
	// ErrorTransport indicates the server could not be reached.
	ErrorTransport ErrorType = iota

	// ErrorStatus indicates a non-2xx HTTP status.
	ErrorStatus

	// ErrorApplication indicates success=false in a 2xx body.
	ErrorApplication

	// ErrorInvalidResponse indicates an undecodable body.
	ErrorInvalidResponse

	// ErrorCanceled indicates the context was canceled or timed out.
	ErrorCanceled
)

// String returns the error type as a string for logging.
func (t ErrorType) String() string {
	switch t {
	case ErrorTransport:
		return "TRANSPORT"
	case ErrorStatus:
		return "STATUS"
	case ErrorApplication:
		return "APPLICATION"
	case ErrorInvalidResponse:
		return "INVALID_RESPONSE"
	case ErrorCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Error provides structured error information for API calls.
type Error struct {
	// Type categorizes the error.
	Type ErrorType

	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int

	// Code is the server's error code, e.g. VALIDATION_FAILED.
	Code string

	// Message is the user-facing description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Type == t
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client calls a simulator server.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. "http://localhost:5000"). A
// non-positive timeout means no client-side timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout < 0 {
		timeout = 0
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Simulate posts req to /api/simulate.
func (c *Client) Simulate(ctx context.Context, req *datatypes.SimulateRequest) (*datatypes.SimulateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Type: ErrorInvalidResponse, Message: "failed to encode request", Err: err}
	}

	var env simulateEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/simulate", body, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "simulation reported failure"
		}
		return nil, &Error{
			Type:       ErrorApplication,
			StatusCode: http.StatusOK,
			Code:       env.Code,
			Message:    msg,
		}
	}
	return &env.SimulateResponse, nil
}

// simulateEnvelope also captures the error fields of a success=false body.
type simulateEnvelope struct {
	datatypes.SimulateResponse
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Defaults fetches /api/defaults.
func (c *Client) Defaults(ctx context.Context) (*datatypes.DefaultsResponse, error) {
	var resp datatypes.DefaultsResponse
	if err := c.do(ctx, http.MethodGet, "/api/defaults", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches /api/health.
func (c *Client) Health(ctx context.Context) (*datatypes.HealthResponse, error) {
	var resp datatypes.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends a request and decodes a 2xx JSON body into out. Non-2xx bodies
// are decoded as datatypes.ErrorResponse when possible.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Type: ErrorTransport, Message: "failed to create request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectContext(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Type: ErrorCanceled, Message: "request canceled", Err: ctx.Err()}
		}
		return &Error{
			Type:    ErrorTransport,
			Message: fmt.Sprintf("cannot reach simulator at %s", c.baseURL),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return &Error{Type: ErrorTransport, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er datatypes.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			return &Error{Type: ErrorStatus, StatusCode: resp.StatusCode, Code: er.Code, Message: er.Error}
		}
		return &Error{
			Type:       ErrorStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("simulator returned %s", resp.Status),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Type:       ErrorInvalidResponse,
			StatusCode: resp.StatusCode,
			Message:    "invalid response from simulator",
			Err:        err,
		}
	}
	return nil
}
