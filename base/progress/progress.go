// Copyright 2023 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer keeps root spans of long-running jobs such as model fitting.
type Tracer struct {
	name  string
	mu    sync.Mutex
	spans []*Span
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(nil, name, total)
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns the progress of all root spans.
func (t *Tracer) List() []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	progress := make([]Progress, 0, len(t.spans))
	for _, span := range t.spans {
		p := span.progress()
		p.Tracer = t.name
		progress = append(progress, p)
	}
	return progress
}

type Span struct {
	mu     sync.Mutex
	parent *Span
	child  *Span
	name   string
	status Status
	total  int
	count  int
	err    string
	start  time.Time
	finish time.Time
}

func newSpan(parent *Span, name string, total int) *Span {
	return &Span{
		parent: parent,
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
}

func (s *Span) End() {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
		s.finish = time.Now()
	}
	parent := s.parent
	s.mu.Unlock()
	if parent != nil {
		parent.mu.Lock()
		if parent.child == s {
			parent.child = nil
		}
		parent.mu.Unlock()
	}
}

// Fail marks the span and all its ancestors as failed.
func (s *Span) Fail(err error) {
	for span := s; span != nil; span = span.parent {
		span.mu.Lock()
		span.status = StatusFailed
		span.err = err.Error()
		span.finish = time.Now()
		span.mu.Unlock()
	}
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Span) progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Error:      s.err,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.child != nil && s.status == StatusRunning {
		c := s.child.progress()
		if c.Status == StatusRunning && c.Total > 0 {
			p.Count = p.Count*c.Total + c.Count
			p.Total = p.Total * c.Total
		}
	}
	return p
}

// Start creates a child span of the span carried by ctx. A detached span is
// returned if ctx carries none.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	if ctx == nil {
		return nil, newSpan(nil, name, total)
	}
	parent, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, newSpan(nil, name, total)
	}
	child := newSpan(parent, name, total)
	parent.mu.Lock()
	parent.child = child
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKeyName, child), child
}

// Fail marks the span carried by ctx as failed.
func Fail(ctx context.Context, err error) {
	if ctx == nil {
		return
	}
	if span, ok := ctx.Value(spanKeyName).(*Span); ok {
		span.Fail(err)
	}
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
