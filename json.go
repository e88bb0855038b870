// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
)

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// This avoids EOF errors that can occur with connection pooling in complex
// process hierarchies.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// EOF errors are often transient connection issues
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// SendJSONRequest issues one JSON-RPC 2.0 call over HTTP and decodes the
// result into reply. Remote faults are returned as *RemoteError.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...Option,
) error {
	return sendJSONRequest(ctx, zerolog.Nop(), uri, method, params, reply, options...)
}

func sendJSONRequest(
	ctx context.Context,
	log zerolog.Logger,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...Option,
) error {
	log.Debug().Str("method", method).Str("uri", uri.String()).Msg("json request")
	requestBodyBytes, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 500ms, 1s
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// Create fresh request for each attempt (body buffer is consumed)
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		client := newHTTPClient()
		resp, err := client.Do(request)
		if err != nil {
			lastErr = err
			retryable := isRetryableError(err) && ctx.Err() == nil
			log.Debug().Int("attempt", attempt+1).Bool("retryable", retryable).Err(err).Msg("json request failed")
			if retryable {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			log.Debug().Int("attempt", attempt+1).Msg("json request succeeded")
		}

		// Return an error for any non successful status code
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		err = json2.DecodeClientResponse(resp.Body, reply)
		CleanlyCloseBody(resp.Body)
		if err != nil {
			var jerr *json2.Error
			if errors.As(err, &jerr) {
				return &RemoteError{Method: method, Message: jerr.Message, Code: int(jerr.Code)}
			}
			if errors.Is(err, json2.ErrNullResult) {
				return err
			}
			return fmt.Errorf("failed to decode client response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

// jsonChannel implements the outbound half of Channel over JSON-RPC 2.0.
// Methods are addressed as "Service.Method" when a service is configured.
type jsonChannel struct {
	uri  *url.URL
	opts *dialOptions
	log  zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool

	hooks lifecycleHooks
}

func dialJSON(addr string, o *dialOptions) (Channel, error) {
	uri, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("json transport: %w", err)
	}
	if uri.Scheme != "http" && uri.Scheme != "https" {
		return nil, fmt.Errorf("json transport: unsupported scheme %q", uri.Scheme)
	}
	return &jsonChannel{
		uri:  uri,
		opts: o,
		log:  o.logger.With().Str("transport", TransportJSON).Logger(),
	}, nil
}

func (c *jsonChannel) methodName(method string) string {
	if c.opts.service == "" {
		return method
	}
	return c.opts.service + "." + method
}

func (c *jsonChannel) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.closed {
		return ErrNotConnected
	}
	return nil
}

func (c *jsonChannel) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	c.started = true
	return nil
}

func (c *jsonChannel) Close() error {
	c.mu.Lock()
	fire := c.started && !c.closed
	c.closed = true
	c.mu.Unlock()
	if fire {
		c.hooks.fireClosed(nil)
	}
	return nil
}

func (c *jsonChannel) Invoke(ctx context.Context, method string, args []any) error {
	if err := c.ready(); err != nil {
		return err
	}
	var raw json.RawMessage
	err := sendJSONRequest(ctx, c.log, c.uri, c.methodName(method), jsonParams(args), &raw, c.opts.requestOptions...)
	if errors.Is(err, json2.ErrNullResult) {
		return nil
	}
	return err
}

func (c *jsonChannel) InvokeTyped(ctx context.Context, method string, resultType reflect.Type, args []any) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	reply := reflect.New(resultType)
	err := sendJSONRequest(ctx, c.log, c.uri, c.methodName(method), jsonParams(args), reply.Interface(), c.opts.requestOptions...)
	if err != nil && !errors.Is(err, json2.ErrNullResult) {
		return nil, err
	}
	return reply.Elem().Interface(), nil
}

func (c *jsonChannel) On(method string, _ []reflect.Type, _ Handler) (Subscription, error) {
	return nil, fmt.Errorf("%w: %s", ErrInboundUnsupported, method)
}

func (c *jsonChannel) OnClosed(fn func(err error)) { c.hooks.onClosed(fn) }
func (c *jsonChannel) OnReconnecting(fn func(err error)) { c.hooks.onReconnecting(fn) }
func (c *jsonChannel) OnReconnected(fn func(connectionID string)) { c.hooks.onReconnected(fn) }

// jsonParams sends the argument list as positional params.
func jsonParams(args []any) interface{} {
	if args == nil {
		return []any{}
	}
	return args
}
