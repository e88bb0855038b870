// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// subscriptions is a handler table keyed by method name, compared
// without regard to case. It is safe for concurrent use.
type subscriptions struct {
	mu     sync.RWMutex
	byName map[string][]*subscription
}

type subscription struct {
	owner   *subscriptions
	key     string
	params  []reflect.Type
	handler Handler
	once    sync.Once
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byName: make(map[string][]*subscription)}
}

func (s *subscriptions) add(method string, params []reflect.Type, handler Handler) (*subscription, error) {
	if method == "" {
		return nil, errors.New("hub: empty method name")
	}
	if handler == nil {
		return nil, errors.New("hub: nil handler")
	}
	sub := &subscription{
		owner:   s,
		key:     strings.ToLower(method),
		params:  append([]reflect.Type(nil), params...),
		handler: handler,
	}
	s.mu.Lock()
	s.byName[sub.key] = append(s.byName[sub.key], sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *subscriptions) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byName[sub.key]
	for i, other := range list {
		if other == sub {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byName, sub.key)
		return
	}
	s.byName[sub.key] = list
}

func (s *subscriptions) lookup(method string) []*subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*subscription(nil), s.byName[strings.ToLower(method)]...)
}

// Len returns the number of active subscriptions.
func (s *subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.byName {
		n += len(list)
	}
	return n
}

// Dispose removes the subscription; repeated calls do nothing.
func (sub *subscription) Dispose() error {
	sub.once.Do(func() { sub.owner.remove(sub) })
	return nil
}

// dispatch decodes payload for every handler subscribed to method and
// runs them in order. The result of the first handler is encoded as the
// reply.
func (s *subscriptions) dispatch(ctx context.Context, c Codec, method string, payload []byte) ([]byte, error) {
	subs := s.lookup(method)
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	var (
		reply []byte
		errs  []error
	)
	for i, sub := range subs {
		args, err := decodeArgs(c, payload, sub.params)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", method, err))
			continue
		}
		result, err := sub.handler(ctx, args)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 && result != nil {
			if reply, err = c.Encode(result); err != nil {
				errs = append(errs, fmt.Errorf("encode result: %w", err))
			}
		}
	}
	if len(errs) == 1 {
		return reply, errs[0]
	}
	return reply, errors.Join(errs...)
}
