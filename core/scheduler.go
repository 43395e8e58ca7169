package core

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrSuperseded marks work for a document version that a newer version
// replaced.
var ErrSuperseded = errors.New("document version superseded")

// DefaultRetention is how many finished documents keep their version.
const DefaultRetention = 4096

// Scheduler tracks the latest version of each document. Starting a newer
// version cancels the job running for an older one, and an older version
// arriving late is refused. Documents with a running job are always tracked;
// only the most recently finished ones are remembered beyond that.
type Scheduler struct {
	mu     sync.Mutex
	docs   map[string]*docState
	idle   *list.List // URIs of finished documents, oldest first
	retain int
}

type docState struct {
	version int64
	cancel  context.CancelCauseFunc
	job     *Job
	idle    *list.Element
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRetention sets how many finished documents are remembered.
func WithRetention(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n >= 0 {
			s.retain = n
		}
	}
}

// Job is the registration of one document version.
type Job struct {
	s       *Scheduler
	uri     string
	version int64
	ctx     context.Context
	cancel  context.CancelCauseFunc
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{docs: make(map[string]*docState), idle: list.New(), retain: DefaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of tracked documents.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Begin registers version of uri. It fails with ErrSuperseded when a newer
// version is already known. Re-submitting the current version restarts it.
func (s *Scheduler) Begin(ctx context.Context, uri string, version int64) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[uri]
	if ok && version < st.version {
		return nil, ErrSuperseded
	}
	if ok && st.cancel != nil {
		st.cancel(ErrSuperseded)
	}
	if ok && st.idle != nil {
		s.idle.Remove(st.idle)
	}

	jctx, cancel := context.WithCancelCause(ctx)
	job := &Job{s: s, uri: uri, version: version, ctx: jctx, cancel: cancel}
	s.docs[uri] = &docState{version: version, cancel: cancel, job: job}
	return job, nil
}

// Latest returns the newest version registered for uri.
func (s *Scheduler) Latest(uri string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.docs[uri]
	if !ok {
		return 0, false
	}
	return st.version, true
}

// Forget drops everything known about uri and cancels its running job.
func (s *Scheduler) Forget(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.docs[uri]; ok {
		if st.cancel != nil {
			st.cancel(ErrSuperseded)
		}
		if st.idle != nil {
			s.idle.Remove(st.idle)
		}
		delete(s.docs, uri)
	}
}

// Context is cancelled when the job is superseded or its parent ends.
func (j *Job) Context() context.Context { return j.ctx }

// Version is the document version the job was registered for.
func (j *Job) Version() int64 { return j.version }

// Current reports whether the job is still the latest for its document.
func (j *Job) Current() bool {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	st, ok := j.s.docs[j.uri]
	return ok && st.job == j
}

// Finish releases the job. It reports whether the job's result may be
// published, which is false once a newer version has started.
func (j *Job) Finish() bool {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	current := false
	if st, ok := j.s.docs[j.uri]; ok && st.job == j {
		current = true
		st.cancel = nil
		if st.idle == nil {
			st.idle = j.s.idle.PushBack(j.uri)
			j.s.trim()
		}
	}
	j.cancel(nil)
	return current
}

// trim forgets the oldest finished documents beyond the retention limit.
// Callers hold s.mu.
func (s *Scheduler) trim() {
	for s.idle.Len() > s.retain {
		uri := s.idle.Remove(s.idle.Front()).(string)
		delete(s.docs, uri)
	}
}
