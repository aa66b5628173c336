package pinger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"userpinger/app/cfg"
	"userpinger/app/database"
	"userpinger/app/dedup"
	"userpinger/app/groups"
	"userpinger/app/reddit"
	"userpinger/app/trigger"
)

// Stream supplies new comments. A (nil, nil) return is the "no comment
// ready" tick that lets the loop observe cancellation between polls.
type Stream interface {
	Next(ctx context.Context) (*reddit.Comment, error)
}

// Authorizer decides whether an author may ping a group.
type Authorizer interface {
	Authorize(ctx context.Context, group, author string) ([]string, groups.Decision, error)
}

// Notifier dispatches ping notifications and user-facing error messages.
type Notifier interface {
	Run(ctx context.Context, group string, members []string, comment *reddit.Comment) error
	SendError(ctx context.Context, author string, errors []string) error
}

// Stats are the loop's counters, exposed through the status API.
type Stats struct {
	Observed  int
	Triggered int
	Pinged    int
	Rejected  int
	Backoffs  int
}

// Loop is the top-level driver: pull a comment, consult the dedup cache,
// parse the trigger, authorize and notify. Strictly sequential; one comment
// is fully dispatched before the next is considered. Cancellation of the
// run context is the termination signal and is observed during the poll
// tick and the backoff sleep.
type Loop struct {
	stream     Stream
	cache      *dedup.Cache
	authorizer Authorizer
	notifier   Notifier
	pingRepo   database.PingRepository

	pollInterval    time.Duration
	backoffInterval time.Duration

	mu    sync.Mutex
	stats Stats
}

func NewLoop(stream Stream, cache *dedup.Cache, authorizer Authorizer, notifier Notifier, pingRepo database.PingRepository) *Loop {
	c := cfg.Get()

	return &Loop{
		stream:          stream,
		cache:           cache,
		authorizer:      authorizer,
		notifier:        notifier,
		pingRepo:        pingRepo,
		pollInterval:    time.Duration(c.PollInterval) * time.Second,
		backoffInterval: time.Duration(c.BackoffInterval) * time.Second,
	}
}

// Run processes the comment stream until ctx is cancelled. Transient
// upstream errors trigger a fixed backoff sleep and are never escalated.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("Listening for pings", "poll_interval", l.pollInterval.String(), "backoff_interval", l.backoffInterval.String())

	for {
		if ctx.Err() != nil {
			slog.Info("Stream loop stopping")
			return
		}

		comment, err := l.stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Stream loop stopping")
				return
			}
			l.backoff(ctx, fmt.Errorf("stream error: %w", err))
			continue
		}

		if comment == nil {
			l.sleep(ctx, l.pollInterval)
			continue
		}

		if err := l.handle(ctx, comment); err != nil {
			if ctx.Err() != nil {
				slog.Info("Stream loop stopping")
				return
			}
			if reddit.IsTransient(err) {
				l.backoff(ctx, err)
				continue
			}
			// Not upstream's fault; skip this comment and move on
			slog.Error("Failed to handle comment", "comment", comment.Fingerprint, "error", err)
		}
	}
}

// handle dispatches a single comment. The fingerprint is recorded in the
// dedup cache before trigger evaluation, regardless of outcome.
func (l *Loop) handle(ctx context.Context, comment *reddit.Comment) error {
	if l.cache.Contains(comment.Fingerprint) {
		return nil
	}
	l.cache.Insert(comment.Fingerprint)

	l.count(func(s *Stats) { s.Observed++ })

	group, match := trigger.Parse(comment.Body)
	switch match {
	case trigger.NoTrigger:
		return nil
	case trigger.Malformed:
		slog.Debug("Trigger with no group specified", "comment", comment.Fingerprint)
		return nil
	}

	slog.Debug("Ping found", "comment", comment.Fingerprint, "group", group, "author", comment.Author)
	l.count(func(s *Stats) { s.Triggered++ })

	members, decision, err := l.authorizer.Authorize(ctx, group, comment.Author)
	if err != nil {
		return fmt.Errorf("failed to authorize ping: %w", err)
	}

	switch decision {
	case groups.UnknownGroup:
		l.count(func(s *Stats) { s.Rejected++ })
		return l.notifier.SendError(ctx, comment.Author, []string{
			fmt.Sprintf("You pinged group %s that does not exist", group),
		})
	case groups.Unauthorized:
		l.count(func(s *Stats) { s.Rejected++ })
		return l.notifier.SendError(ctx, comment.Author, []string{
			fmt.Sprintf("You need to be a member of %s to ping it", group),
			"If you would like to be added, please contact the moderators",
		})
	}

	if err := l.notifier.Run(ctx, group, members, comment); err != nil {
		return err
	}

	l.count(func(s *Stats) { s.Pinged++ })

	if err := l.pingRepo.RecordPing(group, comment.Author, len(members), comment.Fingerprint); err != nil {
		// History is observability only; never abort a dispatch over it
		slog.Warn("Failed to record ping history", "group", group, "error", err)
	}

	return nil
}

func (l *Loop) backoff(ctx context.Context, err error) {
	var serverErr *reddit.ServerError
	var responseErr *reddit.ResponseError

	kind := "request"
	switch {
	case errors.As(err, &serverErr):
		kind = "server"
	case errors.As(err, &responseErr):
		kind = "response"
	}

	slog.Error("Transient upstream error, backing off", "kind", kind, "sleep", l.backoffInterval.String(), "error", err)
	l.count(func(s *Stats) { s.Backoffs++ })
	l.sleep(ctx, l.backoffInterval)
}

// sleep waits for the duration but returns early on cancellation.
func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (l *Loop) count(update func(*Stats)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	update(&l.stats)
}

// GetStats returns a snapshot of the loop counters.
func (l *Loop) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
