package livecheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFrame records loads and posted messages.
type fakeFrame struct {
	loaded []string
	posts  []string
	window struct{ id int } // distinct identity per frame
}

func (f *fakeFrame) Load(url string)     { f.loaded = append(f.loaded, url) }
func (f *fakeFrame) Post(message string) { f.posts = append(f.posts, message) }
func (f *fakeFrame) Window() any         { return &f.window }

// fakeScheduler captures scheduled functions for manual firing.
type fakeScheduler struct {
	delays []time.Duration
	fns    []func()
}

func (s *fakeScheduler) schedule(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

// fire runs the next scheduled function.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, s.fns, "no scheduled check to fire")

	fn := s.fns[0]
	s.delays = s.delays[1:]
	s.fns = s.fns[1:]
	fn()
}

type fixture struct {
	monitor   *Monitor
	frame     *fakeFrame
	scheduler *fakeScheduler
	navigated []string
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		frame:     &fakeFrame{},
		scheduler: &fakeScheduler{},
	}

	f.monitor = New(cfg, f.frame, "https://host.example.com",
		func(url string) { f.navigated = append(f.navigated, url) },
		f.scheduler.schedule)

	return f
}

func testConfig() Config {
	return Config{
		Enabled:   true,
		IframeURL: "https://idp.example.com/session-iframe",
		Interval:  2,
		LogoutURL: "https://host.example.com/logout",
		ClientID:  "host-app",
		SessionID: "sess-1",
	}
}

// frameMessage builds a message as the armed frame would send it.
func (f *fixture) frameMessage(data string) Message {
	return Message{
		Origin: "https://idp.example.com",
		Source: f.frame.Window(),
		Data:   data,
	}
}

func TestStartDisabledIsTerminalNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	f := newFixture(cfg)
	f.monitor.Start()

	assert.Equal(t, StateDisabled, f.monitor.State())
	assert.Empty(t, f.frame.loaded)

	// checks resolve immediately with success
	var got *bool
	f.monitor.Check(func(ok bool) { got = &ok })
	require.NotNil(t, got)
	assert.True(t, *got)
}

func TestStartLoadsFrameAndArms(t *testing.T) {
	f := newFixture(testConfig())

	f.monitor.Start()
	assert.Equal(t, StateFrameLoading, f.monitor.State())
	assert.Equal(t, []string{"https://idp.example.com/session-iframe"}, f.frame.loaded)

	f.monitor.FrameLoaded()
	assert.Equal(t, StateArmed, f.monitor.State())

	// first check scheduled after the configured interval
	require.Len(t, f.scheduler.delays, 1)
	assert.Equal(t, 2*time.Second, f.scheduler.delays[0])
}

func TestPeriodicCheckSendsProtocolMessage(t *testing.T) {
	f := newFixture(testConfig())
	f.monitor.Start()
	f.monitor.FrameLoaded()

	f.scheduler.fire(t)

	assert.Equal(t, StateChecking, f.monitor.State())
	assert.Equal(t, []string{"host-app sess-1"}, f.frame.posts)
}

func TestUnchangedResolvesAndRearms(t *testing.T) {
	f := newFixture(testConfig())
	f.monitor.Start()
	f.monitor.FrameLoaded()
	f.scheduler.fire(t)

	var results []bool
	f.monitor.Check(func(ok bool) { results = append(results, ok) })

	f.monitor.Deliver(f.frameMessage(ResponseUnchanged))

	assert.Equal(t, []bool{true}, results)
	assert.Equal(t, StateArmed, f.monitor.State())

	// exactly one new check scheduled, again after the interval
	require.Len(t, f.scheduler.delays, 1)
	assert.Equal(t, 2*time.Second, f.scheduler.delays[0])
	assert.Empty(t, f.navigated)
}

func TestChangedResolvesFailureAndNavigatesOnce(t *testing.T) {
	for _, payload := range []string{ResponseChanged, ResponseError} {
		t.Run(payload, func(t *testing.T) {
			f := newFixture(testConfig())
			f.monitor.Start()
			f.monitor.FrameLoaded()
			f.scheduler.fire(t)

			var results []bool
			f.monitor.Check(func(ok bool) { results = append(results, ok) })
			f.monitor.Check(func(ok bool) { results = append(results, ok) })

			f.monitor.Deliver(f.frameMessage(payload))

			assert.Equal(t, []bool{false, false}, results)
			assert.Equal(t, StateLoggedOut, f.monitor.State())
			assert.Equal(t, []string{"https://host.example.com/logout"}, f.navigated)

			// no further checks scheduled
			assert.Empty(t, f.scheduler.fns)

			// later checks resolve immediately with failure
			var late *bool
			f.monitor.Check(func(ok bool) { late = &ok })
			require.NotNil(t, late)
			assert.False(t, *late)
		})
	}
}

func TestChecksCoalesce(t *testing.T) {
	f := newFixture(testConfig())
	f.monitor.Start()
	f.monitor.FrameLoaded()
	f.scheduler.fire(t)

	require.Len(t, f.frame.posts, 1)

	// additional checks while one is outstanding do not post again
	var order []int
	f.monitor.Check(func(bool) { order = append(order, 1) })
	f.monitor.Check(func(bool) { order = append(order, 2) })

	assert.Len(t, f.frame.posts, 1)

	// callbacks resolve in enqueue order, in one batch
	f.monitor.Deliver(f.frameMessage(ResponseUnchanged))
	assert.Equal(t, []int{1, 2}, order)
}

func TestDeliverRejectsSpoofedMessages(t *testing.T) {
	f := newFixture(testConfig())
	f.monitor.Start()
	f.monitor.FrameLoaded()
	f.scheduler.fire(t)

	otherWindow := &struct{ id int }{}

	spoofed := []Message{
		{Origin: "https://evil.example.com", Source: f.frame.Window(), Data: ResponseChanged},
		{Origin: "https://idp.example.com", Source: otherWindow, Data: ResponseChanged},
		{Origin: "https://idp.example.com", Source: f.frame.Window(), Data: "CHANGED"},
		{Origin: "https://idp.example.com", Source: f.frame.Window(), Data: "something else"},
	}

	for _, msg := range spoofed {
		f.monitor.Deliver(msg)
	}

	// still checking, nothing resolved, no navigation
	assert.Equal(t, StateChecking, f.monitor.State())
	assert.Empty(t, f.navigated)
}

func TestDeliverIgnoredOutsideChecking(t *testing.T) {
	f := newFixture(testConfig())
	f.monitor.Start()
	f.monitor.FrameLoaded()

	// armed but no outstanding check
	f.monitor.Deliver(f.frameMessage(ResponseChanged))

	assert.Equal(t, StateArmed, f.monitor.State())
	assert.Empty(t, f.navigated)
}

func TestDeriveOrigin(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "absolute url carries its own origin",
			url:      "https://idp.example.com/realms/x/session-iframe",
			expected: "https://idp.example.com",
		},
		{
			name:     "same-origin path uses host origin",
			url:      "/auth/session-iframe",
			expected: "https://host.example.com",
		},
		{
			name:     "unparsable url falls back to host origin",
			url:      "://bad",
			expected: "https://host.example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, deriveOrigin(tc.url, "https://host.example.com"))
		})
	}
}
