// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCallbacksDelivers(t *testing.T) {
	ch := newRecordingChannel()
	rec := newChatRecorder()

	group, err := RegisterCallbacks[chatEvents](ch, rec)
	require.NoError(t, err)
	require.Equal(t, 1, group.Len())
	require.Equal(t, 1, ch.subs.Len())

	_, err = ch.deliver(context.Background(), "OnNewChatMessage", "alice", "hi")
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	require.Equal(t, [2]string{"alice", "hi"}, <-rec.calls)
}

func TestRegisterCallbacksCaseInsensitive(t *testing.T) {
	ch := newRecordingChannel()
	rec := newChatRecorder()

	_, err := RegisterCallbacks[chatEvents](ch, rec)
	require.NoError(t, err)

	_, err = ch.deliver(context.Background(), "onnewchatmessage", "bob", "yo")
	require.NoError(t, err)
	require.Equal(t, [2]string{"bob", "yo"}, <-rec.calls)
}

func TestRegisterCallbacksDispose(t *testing.T) {
	ch := newRecordingChannel()
	rec := newChatRecorder()

	group, err := RegisterCallbacks[chatEvents](ch, rec)
	require.NoError(t, err)

	require.NoError(t, group.Dispose())
	require.NoError(t, group.Dispose())
	require.Zero(t, ch.subs.Len())

	_, err = ch.deliver(context.Background(), "OnNewChatMessage", "alice", "hi")
	require.NoError(t, err)
	require.Empty(t, rec.calls)
}

type presenceListener struct {
	mu     sync.Mutex
	joined []string
	fail   error
}

func (p *presenceListener) OnJoined(userName string) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, userName)
	return Completed()
}

func (p *presenceListener) OnLeft(userName string) *Task {
	if userName == "panic" {
		panic("listener exploded")
	}
	if p.fail != nil {
		return FromError[Void](p.fail)
	}
	return nil
}

func (p *presenceListener) WhoAmI(ctx context.Context) *Future[string] {
	return Run(func() (string, error) {
		if v, ok := ctx.Value(connectionIDKey{}).(string); ok {
			return v, nil
		}
		return "anonymous", nil
	})
}

func TestRegisterCallbacksResults(t *testing.T) {
	ch := newRecordingChannel()
	listener := &presenceListener{}

	group, err := RegisterCallbacks[presenceEvents](ch, listener)
	require.NoError(t, err)
	require.Equal(t, 3, group.Len())

	v, err := ch.deliver(context.Background(), "WhoAmI")
	require.NoError(t, err)
	require.Equal(t, "anonymous", v)

	ctx := context.WithValue(context.Background(), connectionIDKey{}, "conn-1")
	v, err = ch.deliver(ctx, "WhoAmI")
	require.NoError(t, err)
	require.Equal(t, "conn-1", v)

	// a nil future counts as success
	_, err = ch.deliver(context.Background(), "OnLeft", "carol")
	require.NoError(t, err)
}

func TestRegisterCallbacksFaults(t *testing.T) {
	ch := newRecordingChannel()
	boom := errors.New("listener failed")
	listener := &presenceListener{fail: boom}

	_, err := RegisterCallbacks[presenceEvents](ch, listener)
	require.NoError(t, err)

	_, err = ch.deliver(context.Background(), "OnLeft", "carol")
	require.Same(t, boom, err)

	_, err = ch.deliver(context.Background(), "OnLeft", "panic")
	require.ErrorContains(t, err, "listener exploded")

	// the subscription survives both
	_, err = ch.deliver(context.Background(), "OnJoined", "dave")
	require.NoError(t, err)
	require.Equal(t, []string{"dave"}, listener.joined)
}

func TestRegisterCallbacksArguments(t *testing.T) {
	ch := newRecordingChannel()
	listener := &presenceListener{}
	_, err := RegisterCallbacks[presenceEvents](ch, listener)
	require.NoError(t, err)

	_, err = ch.deliver(context.Background(), "OnJoined")
	require.Error(t, err)

	_, err = ch.deliver(context.Background(), "OnJoined", 42)
	require.Error(t, err)

	_, err = ch.deliver(context.Background(), "OnJoined", nil)
	require.NoError(t, err)
	require.Equal(t, []string{""}, listener.joined)
}

type scoreEvents interface {
	OnScore(points int, bonus uint8) *Task
	OnIdle(ctx context.Context) *Task
}

type scoreListener struct {
	mu     sync.Mutex
	scores [][2]int
}

func (s *scoreListener) OnScore(points int, bonus uint8) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, [2]int{points, int(bonus)})
	return &Task{}
}

func (s *scoreListener) OnIdle(context.Context) *Task {
	return new(Task)
}

func TestRegisterCallbacksZeroValueTask(t *testing.T) {
	ch := newRecordingChannel()
	_, err := RegisterCallbacks[scoreEvents](ch, &scoreListener{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = ch.deliver(ctx, "OnIdle")
	require.NoError(t, err)
}

func TestRegisterCallbacksNumericArguments(t *testing.T) {
	ch := newRecordingChannel()
	listener := &scoreListener{}
	_, err := RegisterCallbacks[scoreEvents](ch, listener)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = ch.deliver(ctx, "OnScore", float64(3), int64(200))
	require.NoError(t, err)

	tests := map[string][]any{
		"fraction":  {1.5, 0},
		"negative":  {1, -1},
		"overflow":  {1, 300},
		"too large": {float64(1 << 70), 0},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ch.deliver(ctx, "OnScore", args...)
			require.ErrorContains(t, err, "does not fit")
		})
	}
	require.Equal(t, [][2]int{{3, 200}}, listener.scores)
}

func TestRegisterCallbacksPartialFailure(t *testing.T) {
	ch := newRecordingChannel()
	refused := errors.New("refused")
	ch.onSubs = func(method string) error {
		if method == "WhoAmI" {
			return refused
		}
		return nil
	}

	group, err := RegisterCallbacks[presenceEvents](ch, &presenceListener{})
	require.ErrorIs(t, err, refused)
	require.Nil(t, group)
	require.Zero(t, ch.subs.Len())
}

func TestRegisterRejectsBadInput(t *testing.T) {
	ch := newRecordingChannel()

	_, err := Register(ch, newChatRecorder(), reflect.TypeFor[chatHub]())
	require.ErrorIs(t, err, ErrUnsupportedSignature)

	_, err = Register(ch, &presenceListener{}, reflect.TypeFor[chatEvents]())
	require.Error(t, err)

	_, err = Register(ch, nil, reflect.TypeFor[chatEvents]())
	require.Error(t, err)

	_, err = Register(ch, struct{}{}, reflect.TypeFor[syncEvents]())
	require.Error(t, err)

	require.Zero(t, ch.subs.Len())
}

type blockingEvents interface {
	OnSlow(ctx context.Context) *Task
	OnFast(ctx context.Context) *Task
}

type blockingListener struct {
	release chan struct{}
	fast    chan struct{}
}

func (b *blockingListener) OnSlow(context.Context) *Task {
	return Run(func() (Void, error) {
		<-b.release
		return Void{}, nil
	})
}

func (b *blockingListener) OnFast(context.Context) *Task {
	close(b.fast)
	return Completed()
}

func TestRegisterCallbacksConcurrentMethods(t *testing.T) {
	ch := newRecordingChannel()
	listener := &blockingListener{release: make(chan struct{}), fast: make(chan struct{})}
	_, err := RegisterCallbacks[blockingEvents](ch, listener)
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := ch.deliver(context.Background(), "OnSlow")
		slowDone <- err
	}()

	_, err = ch.deliver(context.Background(), "OnFast")
	require.NoError(t, err)

	select {
	case <-listener.fast:
	case <-time.After(time.Second):
		t.Fatal("fast handler blocked behind slow handler")
	}

	close(listener.release)
	assert.NoError(t, <-slowDone)
}
