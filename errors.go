// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnsupportedSignature is matched by every *UnsupportedSignatureError.
	ErrUnsupportedSignature = errors.New("hub: unsupported signature")

	// ErrCanceled reports that the remote side abandoned an invocation.
	ErrCanceled = fmt.Errorf("hub: invocation canceled: %w", context.Canceled)

	// ErrTransportLost reports that the underlying connection went away.
	ErrTransportLost = errors.New("hub: transport lost")

	ErrNotConnected        = errors.New("hub: channel not connected")
	ErrInboundUnsupported  = errors.New("hub: channel does not deliver inbound calls")
	ErrIncompatibleVersion = errors.New("hub: incompatible protocol version")
	ErrUnknownMethod       = errors.New("hub: unknown method")
)

// UnsupportedSignatureError describes a contract member the resolver
// cannot classify.
type UnsupportedSignatureError struct {
	Type   reflect.Type
	Member string
	Reason string
}

func (e *UnsupportedSignatureError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("hub: unsupported contract %v: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("hub: unsupported signature %v.%s: %s", e.Type, e.Member, e.Reason)
}

func (e *UnsupportedSignatureError) Is(target error) bool {
	return target == ErrUnsupportedSignature
}

// RemoteError is a fault reported by the remote side of an invocation.
type RemoteError struct {
	Method  string
	Message string
	Code    int
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("hub: %s failed (code %d): %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("hub: %s failed: %s", e.Method, e.Message)
}

// IsCancellation reports whether err means the invocation was abandoned
// rather than failed.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCanceled) {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.Canceled {
		return true
	}
	return false
}
