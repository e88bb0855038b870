// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/luxfi/hubproxy"
)

// Printer writes incoming chat messages to a console.
type Printer struct {
	mu   sync.Mutex
	out  io.Writer
	user *color.Color
	text *color.Color
	info *color.Color
	fail *color.Color
}

// NewPrinter returns a Printer writing to out. Colors follow the
// terminal detection of fatih/color unless noColor is set.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:  out,
		user: color.New(color.FgHiCyan, color.Bold),
		text: color.New(color.FgHiWhite),
		info: color.New(color.FgHiGreen),
		fail: color.New(color.FgHiRed),
	}
	if noColor {
		for _, c := range []*color.Color{p.user, p.text, p.info, p.fail} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) OnNewChatMessage(_ context.Context, userName, message string) *hubproxy.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "New message: %s => %s\n", p.user.Sprint(userName), p.text.Sprint(message))
	if err != nil {
		return hubproxy.FromError[hubproxy.Void](err)
	}
	return hubproxy.Completed()
}

// Infof prints a status line.
func (p *Printer) Infof(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.info.Fprintf(p.out, format+"\n", args...)
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail.Fprintf(p.out, format+"\n", args...)
}
