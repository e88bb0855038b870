// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"net/http"
	"net/url"
)

// Option configures a single HTTP request of the JSON transport
type Option func(*Options)

// Options collects request headers and query parameters
type Options struct {
	headers     http.Header
	queryParams url.Values
}

// NewOptions applies options to an empty request configuration
func NewOptions(options []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// Headers returns the configured headers
func (o *Options) Headers() http.Header {
	return o.headers
}

// QueryParams returns the configured query parameters
func (o *Options) QueryParams() url.Values {
	return o.queryParams
}

// WithHeader adds a request header
func WithHeader(key, val string) Option {
	return func(o *Options) {
		o.headers.Add(key, val)
	}
}

// WithQueryParam adds a query parameter
func WithQueryParam(key, val string) Option {
	return func(o *Options) {
		o.queryParams.Add(key, val)
	}
}
