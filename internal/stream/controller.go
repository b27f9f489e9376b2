package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestream/internal/hue"
)

// GroupAPI toggles the "stream active" flag of an entertainment group.
// *hue.Client implements it.
type GroupAPI interface {
	SetStreamActive(ctx context.Context, groupID string, active bool) error
}

// GroupChecker looks up an entertainment group before streaming is enabled.
// *hue.GroupInspector implements it.
type GroupChecker interface {
	Group(ctx context.Context, groupID string) (*hue.GroupInfo, error)
}

// ControllerConfig identifies the group to stream to and the DTLS peer.
type ControllerConfig struct {
	GroupID string
	Session SessionConfig
}

// Stats is a point-in-time view of a controller.
type Stats struct {
	State      string     `json:"state"`
	GroupID    string     `json:"group"`
	SessionID  string     `json:"session_id,omitempty"`
	Frames     uint64     `json:"frames"`
	Bytes      uint64     `json:"bytes"`
	SendErrors uint64     `json:"send_errors"`
	Pending    int        `json:"pending"`
	LastError  string     `json:"last_error,omitempty"`
	LastSend   *time.Time `json:"last_send,omitempty"`
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDialer replaces OpenSession.
func WithDialer(d Dialer) Option {
	return func(c *Controller) { c.dial = d }
}

// WithGroupChecker makes Enable refuse groups that are not entertainment groups.
func WithGroupChecker(gc GroupChecker) Option {
	return func(c *Controller) { c.checker = gc }
}

// WithQueue shares an existing queue with the controller.
func WithQueue(q *Queue) Option {
	return func(c *Controller) { c.queue = q }
}

// Controller owns the streaming session of one entertainment group and drives
// queue -> encoder -> session. It has no timer: callers decide when to Flush.
type Controller struct {
	cfg     ControllerConfig
	api     GroupAPI
	dial    Dialer
	checker GroupChecker
	queue   *Queue

	// opMu serializes Enable and Disable.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	conn      Conn
	sessionID string
	stats     Stats

	observers []func(StateChange)
}

// NewController creates a disabled controller.
func NewController(cfg ControllerConfig, api GroupAPI, opts ...Option) *Controller {
	c := &Controller{
		cfg:   cfg,
		api:   api,
		dial:  DialSession,
		queue: NewQueue(),
		state: StateDisabled,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnStateChange registers fn to be called after every transition.
// Register observers before the controller is used.
func (c *Controller) OnStateChange(fn func(StateChange)) {
	c.observers = append(c.observers, fn)
}

// Queue returns the update queue feeding this controller.
func (c *Controller) Queue() *Queue {
	return c.queue
}

// Enqueue is a shorthand for Queue().Enqueue.
func (c *Controller) Enqueue(u LightUpdate) {
	c.queue.Enqueue(u)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	s := c.stats
	s.State = c.state.String()
	s.SessionID = c.sessionID
	c.mu.RUnlock()

	s.GroupID = c.cfg.GroupID
	s.Pending = c.queue.Len()
	return s
}

// Enable asks the bridge to start streaming and opens the DTLS session.
//
// Any failure returns the controller to Disabled and is reported as is; nothing is retried.
// A bridge rejection surfaces as *hue.ConfigAPIError, session failures as
// *HandshakeError or *TransportError.
func (c *Controller) Enable(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if s := c.State(); s != StateDisabled {
		return fmt.Errorf("%w: enable while %s", ErrInvalidState, s)
	}

	groupID := c.cfg.GroupID
	c.mu.Lock()
	c.sessionID = uuid.NewString()
	c.stats = Stats{}
	c.mu.Unlock()
	c.transition(StateEnabling, nil)

	if c.checker != nil {
		info, err := c.checker.Group(ctx, groupID)
		if err == nil {
			err = info.CheckStreamable()
		}
		if err != nil {
			return c.abortEnable(fmt.Errorf("group check: %w", err))
		}
	}

	if err := c.api.SetStreamActive(ctx, groupID, true); err != nil {
		return c.abortEnable(asConfigAPIError(err, groupID, true))
	}

	conn, err := c.dial(ctx, c.cfg.Session)
	if err != nil {
		// The bridge already switched the group to streaming; hand it back.
		if rerr := c.api.SetStreamActive(context.WithoutCancel(ctx), groupID, false); rerr != nil {
			log.Warn().Err(rerr).Str("group", groupID).Msg("Failed to reset stream flag after session failure")
		}
		return c.abortEnable(err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.transition(StateActive, nil)
	return nil
}

func (c *Controller) abortEnable(err error) error {
	c.mu.Lock()
	c.stats.LastError = err.Error()
	c.mu.Unlock()
	c.transition(StateDisabled, err)
	return err
}

// Disable closes the session (if any) and then always asks the bridge to stop streaming.
// Calling it while already disabled is allowed and only repeats the stop request.
func (c *Controller) Disable(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.transition(StateDisabling, nil)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var closeErr error
	if conn != nil {
		if closeErr = conn.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("group", c.cfg.GroupID).Msg("Failed to close stream session")
		}
	}

	var apiErr error
	if err := c.api.SetStreamActive(ctx, c.cfg.GroupID, false); err != nil {
		apiErr = asConfigAPIError(err, c.cfg.GroupID, false)
		c.mu.Lock()
		c.stats.LastError = apiErr.Error()
		c.mu.Unlock()
	}

	c.transition(StateDisabled, apiErr)
	return errors.Join(apiErr, closeErr)
}

// Flush drains the queue and broadcasts it as one frame.
//
// It is a no-op while the controller is not Active, and when the queue is empty.
// Drained updates are not requeued on failure: the next flush carries current state anyway.
func (c *Controller) Flush(cs ColorSpace) error {
	conn, ok := c.activeConn()
	if !ok {
		return nil
	}
	updates := c.queue.Drain()
	if len(updates) == 0 {
		return nil
	}
	return c.broadcast(conn, updates, cs)
}

// Send broadcasts updates directly, bypassing the queue. Like Flush it does nothing
// unless Active.
func (c *Controller) Send(updates []LightUpdate, cs ColorSpace) error {
	conn, ok := c.activeConn()
	if !ok {
		return nil
	}
	return c.broadcast(conn, updates, cs)
}

func (c *Controller) activeConn() (Conn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateActive || c.conn == nil {
		return nil, false
	}
	return c.conn, true
}

func (c *Controller) broadcast(conn Conn, updates []LightUpdate, cs ColorSpace) error {
	frame, err := EncodeFrame(updates, cs)
	if err != nil {
		return err
	}

	if err := conn.Send(frame); err != nil {
		// Lost a race with Disable: drop the frame silently.
		if errors.Is(err, ErrSessionClosed) && c.State() != StateActive {
			return nil
		}
		c.mu.Lock()
		c.stats.SendErrors++
		c.stats.LastError = err.Error()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.stats.Frames++
	c.stats.Bytes += uint64(len(frame))
	now := time.Now()
	c.stats.LastSend = &now
	c.mu.Unlock()
	return nil
}

func (c *Controller) transition(to State, cause error) {
	c.mu.Lock()
	from := c.state
	c.state = to
	change := StateChange{
		From:      from,
		To:        to,
		GroupID:   c.cfg.GroupID,
		SessionID: c.sessionID,
		Frames:    c.stats.Frames,
		Err:       cause,
	}
	c.mu.Unlock()

	event := log.Info()
	if cause != nil {
		event = log.Warn().Err(cause)
	}
	event.
		Str("group", change.GroupID).
		Str("session", change.SessionID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Streaming state changed")

	for _, fn := range c.observers {
		fn(change)
	}
}

func asConfigAPIError(err error, groupID string, active bool) error {
	var apiErr *hue.ConfigAPIError
	if errors.As(err, &apiErr) {
		return err
	}
	op := "stop streaming"
	if active {
		op = "start streaming"
	}
	return &hue.ConfigAPIError{Op: op, Group: groupID, Err: err}
}
