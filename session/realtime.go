package session

import (
	"context"
	"time"

	"github.com/meikuraledutech/flow/diff"
	"github.com/meikuraledutech/flow/push"
)

// DefaultRealtimeInterval is how often the working graph is diffed for push.
const DefaultRealtimeInterval = 500 * time.Millisecond

type realtime struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// DiffEvent is the payload published on the diff topic.
type DiffEvent struct {
	ApplicationID string       `json:"applicationId"`
	Hash          string       `json:"hash"`
	Summary       diff.Summary `json:"summary"`
	Diff          diff.Result  `json:"diff"`
}

// StartRealtime diffs the working graph every interval and publishes
// each new non-empty diff to the application's diff topic. It replaces
// a running ticker. Without a publisher it does nothing.
func (s *Session) StartRealtime(ctx context.Context, interval time.Duration) error {
	if s.publisher == nil {
		return nil
	}
	s.mu.Lock()
	appID := s.appID
	s.mu.Unlock()
	if appID == "" {
		return ErrNotLoaded
	}
	if interval <= 0 {
		interval = DefaultRealtimeInterval
	}

	s.StopRealtime()

	ctx, cancel := context.WithCancel(ctx)
	rt := &realtime{cancel: cancel, done: make(chan struct{})}
	s.rtMu.Lock()
	s.rt = rt
	s.rtMu.Unlock()

	go s.runRealtime(ctx, rt, interval)
	s.logger.Info("realtime diff started", "app", appID, "interval", interval)
	return nil
}

func (s *Session) runRealtime(ctx context.Context, rt *realtime, interval time.Duration) {
	defer close(rt.done)
	t := time.NewTicker(interval)
	defer t.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		ev, ok := s.diffEvent()
		if !ok || ev.Hash == last {
			continue
		}
		if err := s.publisher.Publish(ctx, push.DiffTopic(ev.ApplicationID), ev); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("publish diff failed", "app", ev.ApplicationID, "error", err)
			continue
		}
		last = ev.Hash
	}
}

func (s *Session) diffEvent() (DiffEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.diffLocked()
	if r.Empty() {
		return DiffEvent{}, false
	}
	return DiffEvent{
		ApplicationID: s.appID,
		Hash:          diff.GraphHash(s.graph.Nodes, s.graph.Edges),
		Summary:       r.Summary(),
		Diff:          r,
	}, true
}

// StopRealtime stops the ticker and waits for it to exit. Calling it when
// nothing runs is a no-op.
func (s *Session) StopRealtime() {
	s.rtMu.Lock()
	rt := s.rt
	s.rt = nil
	s.rtMu.Unlock()
	if rt == nil {
		return
	}
	rt.cancel()
	<-rt.done
}

// Realtime reports whether the ticker is running.
func (s *Session) Realtime() bool {
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	return s.rt != nil
}
