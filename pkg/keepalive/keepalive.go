// Package keepalive sends scheduled text through live sessions. Servers kick
// idle players; a cron-scheduled command or chat line keeps a relay-only
// session connected.
package keepalive

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/pkg/session"
)

// Job is one scheduled message. Schedule is a cron expression; Text is
// forwarded unmodified, so it may be a chat line or a slash command.
type Job struct {
	SessionID string `json:"session_id"`
	Schedule  string `json:"schedule"`
	Text      string `json:"text"`
}

// Forwarder is the hub-side capability keepalive needs. Forward applies the
// relay's routing-miss policy: jobs for sessions that no longer exist are
// dropped silently.
type Forwarder interface {
	Forward(id session.Identity, text string)
}

// Service ticks once a minute and forwards every job whose schedule is due.
type Service struct {
	jobs    []Job
	fwd     Forwarder
	gron    gronx.Gronx
	stop    chan struct{}
	stopped chan struct{}
}

// NewService validates the job schedules and returns a service. Invalid
// expressions are rejected up front rather than discovered at tick time.
func NewService(jobs []Job, fwd Forwarder) (*Service, error) {
	g := gronx.New()
	for _, job := range jobs {
		if !g.IsValid(job.Schedule) {
			return nil, fmt.Errorf("invalid keepalive schedule %q for %s", job.Schedule, job.SessionID)
		}
		if _, ok := session.ParseID(job.SessionID); !ok {
			return nil, fmt.Errorf("invalid keepalive session id %q", job.SessionID)
		}
	}
	return &Service{
		jobs:    jobs,
		fwd:     fwd,
		gron:    *g,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start runs the tick loop until Stop or ctx cancellation.
func (s *Service) Start(ctx context.Context) {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.runDue(now)
			}
		}
	}()
	if len(s.jobs) > 0 {
		log.Info().Str("component", "keepalive").Int("jobs", len(s.jobs)).Msg("keepalive service started")
	}
}

// Stop halts the tick loop and waits for it to exit.
func (s *Service) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.stopped
}

// runDue forwards every job due at the reference time.
func (s *Service) runDue(now time.Time) {
	for _, job := range s.jobs {
		due, err := s.gron.IsDue(job.Schedule, now)
		if err != nil {
			log.Warn().
				Str("component", "keepalive").
				Str("session_id", job.SessionID).
				Err(err).
				Msg("schedule evaluation failed")
			continue
		}
		if !due {
			continue
		}
		id, ok := session.ParseID(job.SessionID)
		if !ok {
			continue
		}
		log.Debug().
			Str("component", "keepalive").
			Str("session_id", job.SessionID).
			Msg("keepalive due")
		s.fwd.Forward(id, job.Text)
	}
}
