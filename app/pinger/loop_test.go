package pinger

import (
	"context"
	"strings"
	"testing"
	"time"

	"userpinger/app/database"
	"userpinger/app/dedup"
	"userpinger/app/groups"
	"userpinger/app/reddit"
)

// event is one step of a scripted stream: a comment, an error, or a tick.
type event struct {
	comment *reddit.Comment
	err     error
}

// MockStream replays scripted events, then cancels the loop context.
type MockStream struct {
	events []event
	cancel context.CancelFunc
}

var _ Stream = (*MockStream)(nil)

func (m *MockStream) Next(ctx context.Context) (*reddit.Comment, error) {
	if len(m.events) == 0 {
		m.cancel()
		return nil, ctx.Err()
	}
	e := m.events[0]
	m.events = m.events[1:]
	return e.comment, e.err
}

// MockAuthorizer implements Authorizer for testing
type MockAuthorizer struct {
	members  []string
	decision groups.Decision
	err      error
	calls    int
}

var _ Authorizer = (*MockAuthorizer)(nil)

func (m *MockAuthorizer) Authorize(ctx context.Context, group, author string) ([]string, groups.Decision, error) {
	m.calls++
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.members, m.decision, nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	runs      []string
	errorPMs  []string
	runErr    error
	sendCalls int
}

var _ Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Run(ctx context.Context, group string, members []string, comment *reddit.Comment) error {
	if m.runErr != nil {
		return m.runErr
	}
	m.runs = append(m.runs, group)
	return nil
}

func (m *MockNotifier) SendError(ctx context.Context, author string, errors []string) error {
	m.sendCalls++
	m.errorPMs = append(m.errorPMs, strings.Join(errors, "\n"))
	return nil
}

// MockPingRepository implements database.PingRepository for testing
type MockPingRepository struct {
	recorded []string
	err      error
}

var _ database.PingRepository = (*MockPingRepository)(nil)

func (m *MockPingRepository) RecordPing(groupName, author string, memberCount int, commentID string) error {
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, groupName)
	return nil
}

func (m *MockPingRepository) GetRecentPings(limit int) ([]database.Ping, error) {
	return nil, nil
}

func (m *MockPingRepository) GetPingCount() (int, error) {
	return len(m.recorded), nil
}

func (m *MockPingRepository) GetGroupCounts() (map[string]int, error) {
	return nil, nil
}

type fixture struct {
	loop       *Loop
	stream     *MockStream
	authorizer *MockAuthorizer
	notifier   *MockNotifier
	pingRepo   *MockPingRepository
	cache      *dedup.Cache
}

func newFixture(events ...event) *fixture {
	f := &fixture{
		stream:     &MockStream{events: events},
		authorizer: &MockAuthorizer{},
		notifier:   &MockNotifier{},
		pingRepo:   &MockPingRepository{},
		cache:      dedup.NewCache(),
	}

	f.loop = &Loop{
		stream:          f.stream,
		cache:           f.cache,
		authorizer:      f.authorizer,
		notifier:        f.notifier,
		pingRepo:        f.pingRepo,
		pollInterval:    time.Millisecond,
		backoffInterval: time.Millisecond,
	}

	return f
}

func (f *fixture) run(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.stream.cancel = cancel

	f.loop.Run(ctx)

	if ctx.Err() == context.DeadlineExceeded {
		t.Fatal("Loop did not stop after stream was exhausted")
	}
}

func comment(fingerprint, author, body string) *reddit.Comment {
	return &reddit.Comment{
		Fingerprint: fingerprint,
		Author:      author,
		Body:        body,
		Permalink:   "https://example.com/" + fingerprint,
	}
}

func TestRunDispatchesAuthorizedPing(t *testing.T) {
	f := newFixture(event{comment: comment("t1_a", "alice", "hello !ping mods")})
	f.authorizer.members = []string{"alice", "bob"}
	f.authorizer.decision = groups.Authorized

	f.run(t)

	if len(f.notifier.runs) != 1 || f.notifier.runs[0] != "MODS" {
		t.Errorf("Expected one notification for MODS, got %v", f.notifier.runs)
	}
	if len(f.pingRepo.recorded) != 1 {
		t.Errorf("Expected ping history record, got %d", len(f.pingRepo.recorded))
	}
	if !f.cache.Contains("t1_a") {
		t.Error("Expected fingerprint in dedup cache")
	}

	stats := f.loop.GetStats()
	if stats.Observed != 1 || stats.Triggered != 1 || stats.Pinged != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestRunSkipsSeenComment(t *testing.T) {
	f := newFixture(
		event{comment: comment("t1_a", "alice", "!ping mods")},
		event{comment: comment("t1_a", "alice", "!ping mods")},
	)
	f.authorizer.members = []string{"alice"}
	f.authorizer.decision = groups.Authorized

	f.run(t)

	if f.authorizer.calls != 1 {
		t.Errorf("Expected one authorization for duplicate comment, got %d", f.authorizer.calls)
	}
	if len(f.notifier.runs) != 1 {
		t.Errorf("Expected one notification for duplicate comment, got %d", len(f.notifier.runs))
	}
}

func TestRunInsertsFingerprintWithoutTrigger(t *testing.T) {
	f := newFixture(event{comment: comment("t1_a", "alice", "no trigger here")})

	f.run(t)

	if !f.cache.Contains("t1_a") {
		t.Error("Expected fingerprint in cache even without trigger")
	}
	if f.authorizer.calls != 0 {
		t.Errorf("Expected no authorization, got %d calls", f.authorizer.calls)
	}
}

func TestRunMalformedTriggerIsSilent(t *testing.T) {
	f := newFixture(event{comment: comment("t1_a", "alice", "end of comment !ping")})

	f.run(t)

	if f.authorizer.calls != 0 {
		t.Error("Expected no authorization for malformed trigger")
	}
	if f.notifier.sendCalls != 0 {
		t.Error("Expected no error PM for malformed trigger")
	}
	if !f.cache.Contains("t1_a") {
		t.Error("Expected fingerprint in cache")
	}
}

func TestRunUnknownGroup(t *testing.T) {
	f := newFixture(event{comment: comment("t1_a", "carol", "!ping ghost")})
	f.authorizer.decision = groups.UnknownGroup

	f.run(t)

	if len(f.notifier.runs) != 0 {
		t.Error("Expected no notification for unknown group")
	}
	if f.notifier.sendCalls != 1 {
		t.Fatalf("Expected one error PM, got %d", f.notifier.sendCalls)
	}
	if !strings.Contains(f.notifier.errorPMs[0], "does not exist") {
		t.Errorf("Expected unknown-group wording, got '%s'", f.notifier.errorPMs[0])
	}
	if len(f.pingRepo.recorded) != 0 {
		t.Error("Expected no history record for rejected ping")
	}
}

func TestRunUnauthorized(t *testing.T) {
	f := newFixture(event{comment: comment("t1_a", "carol", "!ping mods")})
	f.authorizer.decision = groups.Unauthorized

	f.run(t)

	if len(f.notifier.runs) != 0 {
		t.Error("Expected no notification for unauthorized pinger")
	}
	if f.notifier.sendCalls != 1 {
		t.Fatalf("Expected one error PM, got %d", f.notifier.sendCalls)
	}
	if !strings.Contains(f.notifier.errorPMs[0], "You need to be a member") {
		t.Errorf("Expected unauthorized wording, got '%s'", f.notifier.errorPMs[0])
	}

	stats := f.loop.GetStats()
	if stats.Rejected != 1 {
		t.Errorf("Expected 1 rejection, got %d", stats.Rejected)
	}
}

func TestRunBacksOffOnTransientError(t *testing.T) {
	f := newFixture(
		event{err: &reddit.ServerError{StatusCode: 503}},
		event{comment: comment("t1_a", "alice", "!ping mods")},
	)
	f.authorizer.members = []string{"alice"}
	f.authorizer.decision = groups.Authorized

	f.run(t)

	stats := f.loop.GetStats()
	if stats.Backoffs != 1 {
		t.Errorf("Expected 1 backoff, got %d", stats.Backoffs)
	}
	if len(f.notifier.runs) != 1 {
		t.Error("Expected loop to resume after backoff")
	}
}

func TestRunHistoryFailureDoesNotAbort(t *testing.T) {
	f := newFixture(event{comment: comment("t1_a", "alice", "!ping mods")})
	f.authorizer.members = []string{"alice"}
	f.authorizer.decision = groups.Authorized
	f.pingRepo.err = &reddit.RequestError{Err: context.DeadlineExceeded}

	f.run(t)

	stats := f.loop.GetStats()
	if stats.Pinged != 1 {
		t.Errorf("Expected dispatch to succeed despite history failure, got %+v", stats)
	}
	if stats.Backoffs != 0 {
		t.Errorf("Expected no backoff for history failure, got %d", stats.Backoffs)
	}
}

func TestRunCancellationUnblocksBackoff(t *testing.T) {
	f := newFixture(event{err: &reddit.ServerError{StatusCode: 503}})
	f.loop.backoffInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	f.stream.cancel = cancel

	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx)
		close(done)
	}()

	// Give the loop time to enter the backoff sleep, then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not unblock from backoff sleep on cancellation")
	}
}
