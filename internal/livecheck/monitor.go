// Package livecheck implements the browser-side session-liveness protocol
// as an explicit state machine. The browser embeds a hidden frame pointed at
// the identity provider's session-check document and periodically asks it,
// via message passing, whether the provider session is still the one the
// user logged in with. The Monitor models that protocol with one inbox and
// one outbox so the origin checks and callback batching are testable without
// a real browser.
//
// The Monitor is single-threaded cooperative: it never blocks and is not
// safe for concurrent use. All waiting is expressed through the injected
// scheduler; the surrounding event loop delivers frame-load and message
// events by calling FrameLoaded and Deliver.
package livecheck

import (
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Response payloads of the session-check frame. Anything else is discarded.
const (
	ResponseUnchanged = "unchanged"
	ResponseChanged   = "changed"
	ResponseError     = "error"
)

// State of the monitor.
type State int

const (
	// StateUninitialized is the state before Start.
	StateUninitialized State = iota
	// StateDisabled is the terminal no-op state when checking is off.
	StateDisabled
	// StateFrameLoading waits for the hidden frame to finish loading.
	StateFrameLoading
	// StateArmed waits for the next scheduled check.
	StateArmed
	// StateChecking has a request outstanding against the frame.
	StateChecking
	// StateLoggedOut is the terminal state after a changed/error response.
	StateLoggedOut
)

// Config is the boundary configuration delivered from the server to the
// browser as static initialization data.
type Config struct {
	// Enabled turns the liveness check on.
	Enabled bool `json:"enableSessionCheck"`
	// IframeURL is the provider's session-check document.
	IframeURL string `json:"sessionCheckIframeUrl"`
	// Interval is the number of seconds between checks.
	Interval int `json:"sessionCheckInterval"`
	// LogoutURL is where the browser navigates when the session ended.
	LogoutURL string `json:"logoutUrl"`
	// ClientID identifies the OAuth2 client towards the check frame.
	ClientID string `json:"clientId"`
	// SessionID is the provider session the login was established under.
	SessionID string `json:"sessionId"`
}

// Frame is the hidden cross-origin frame the monitor owns exclusively.
type Frame interface {
	// Load starts loading the session-check document.
	Load(url string)
	// Post sends a message to the frame's window.
	Post(message string)
	// Window returns the frame's window identity, compared against message
	// sources to reject spoofed messages.
	Window() any
}

// Message is one inbound cross-context message.
type Message struct {
	// Origin the message claims to come from.
	Origin string
	// Source is the window that sent the message.
	Source any
	// Data is the payload.
	Data string
}

// Callback receives the outcome of one liveness check: true while the
// provider session is unchanged, false when it ended.
type Callback func(ok bool)

// Scheduler runs fn once after d. time.AfterFunc satisfies it in production;
// tests inject their own.
type Scheduler func(d time.Duration, fn func())

// Monitor drives the liveness protocol for one page lifetime.
type Monitor struct {
	cfg        Config
	frame      Frame
	navigate   func(url string)
	schedule   Scheduler
	hostOrigin string

	state   State
	origin  string
	pending []Callback
}

// New creates a monitor. hostOrigin is the origin of the embedding page,
// used when the configured check URL is a same-origin path. navigate is
// invoked exactly once with the logout URL when the session ends.
func New(cfg Config, frame Frame, hostOrigin string, navigate func(url string), schedule Scheduler) *Monitor {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}

	return &Monitor{
		cfg:        cfg,
		frame:      frame,
		navigate:   navigate,
		schedule:   schedule,
		hostOrigin: hostOrigin,
		state:      StateUninitialized,
	}
}

// State returns the current protocol state.
func (m *Monitor) State() State {
	return m.state
}

// Start activates the monitor. With checking disabled it finishes
// immediately in the terminal no-op state; otherwise it begins loading the
// hidden frame.
func (m *Monitor) Start() {
	if m.state != StateUninitialized {
		return
	}

	if !m.cfg.Enabled {
		m.state = StateDisabled
		return
	}

	m.state = StateFrameLoading
	m.frame.Load(m.cfg.IframeURL)
}

// FrameLoaded tells the monitor the hidden frame finished loading. It
// resolves the frame's effective origin and schedules the first check.
func (m *Monitor) FrameLoaded() {
	if m.state != StateFrameLoading {
		return
	}

	m.origin = deriveOrigin(m.cfg.IframeURL, m.hostOrigin)
	m.state = StateArmed
	m.scheduleCheck()
}

// Check requests a liveness check. The callback is resolved on the next
// response. Checks coalesce: while a request is outstanding no duplicate
// message is sent, the callback just joins the pending batch. In terminal
// states the callback resolves immediately (success while disabled, failure
// after logout).
func (m *Monitor) Check(cb Callback) {
	switch m.state {
	case StateDisabled:
		if cb != nil {
			cb(true)
		}

		return
	case StateLoggedOut:
		if cb != nil {
			cb(false)
		}

		return
	case StateUninitialized:
		return
	}

	if cb != nil {
		m.pending = append(m.pending, cb)
	}

	if m.state == StateChecking {
		return
	}

	m.state = StateChecking
	m.frame.Post(m.cfg.ClientID + " " + m.cfg.SessionID)
}

// Deliver feeds one inbound message to the monitor. Messages whose origin or
// source window do not match the armed frame, and payloads outside the
// protocol, are silently discarded; they may be benign browser noise.
func (m *Monitor) Deliver(msg Message) {
	// The frame only answers requests; anything outside an outstanding check
	// is noise.
	if m.state != StateChecking {
		return
	}

	if msg.Origin != m.origin || msg.Source != m.frame.Window() {
		return
	}

	switch msg.Data {
	case ResponseUnchanged:
		m.resolvePending(true)
		m.state = StateArmed
		m.scheduleCheck()
	case ResponseChanged, ResponseError:
		m.resolvePending(false)
		m.state = StateLoggedOut

		log.Info().Str("response", msg.Data).Msg("provider session ended, logging out")

		if m.navigate != nil {
			m.navigate(m.cfg.LogoutURL)
		}
	}
}

// scheduleCheck arms the timer for the next periodic check.
func (m *Monitor) scheduleCheck() {
	m.schedule(time.Duration(m.cfg.Interval)*time.Second, func() {
		if m.state != StateArmed {
			return
		}

		m.Check(nil)
	})
}

// resolvePending resolves all queued callbacks in enqueue order, in one batch.
func (m *Monitor) resolvePending(ok bool) {
	pending := m.pending
	m.pending = nil

	for _, cb := range pending {
		cb(ok)
	}
}

// deriveOrigin resolves the effective origin of the check frame: an absolute
// check URL carries its own origin, a same-origin path uses the host's.
func deriveOrigin(iframeURL, hostOrigin string) string {
	u, err := url.Parse(iframeURL)
	if err != nil || !u.IsAbs() {
		return hostOrigin
	}

	return u.Scheme + "://" + u.Host
}
