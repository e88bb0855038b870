// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import "context"

// Contracts shared by the tests in this package.

type chatHub struct {
	SendMessage func(ctx context.Context, userName, message string) *Task
}

type secondHub struct {
	GetRandomInts func(ctx context.Context, count, min, max int) *Future[[]int]
}

type mixedHub struct {
	Ping    func() *Task
	Lookup  func(ctx context.Context, key string) *Future[any]
	Sum     func(a, b int) *Future[int]
	Renamed func(ctx context.Context) *Future[string] `hub:"get_name"`
	Ignored func() int                                `hub:"-"`

	note string
}

type chatEvents interface {
	OnNewChatMessage(ctx context.Context, userName, message string) *Task
}

type presenceEvents interface {
	OnJoined(userName string) *Task
	OnLeft(userName string) *Task
	WhoAmI(ctx context.Context) *Future[string]
}

type chatRecorder struct {
	calls chan [2]string
}

func newChatRecorder() *chatRecorder {
	return &chatRecorder{calls: make(chan [2]string, 16)}
}

func (c *chatRecorder) OnNewChatMessage(_ context.Context, userName, message string) *Task {
	c.calls <- [2]string{userName, message}
	return Completed()
}
