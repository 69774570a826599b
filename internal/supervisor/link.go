// Package supervisor owns the persistent request/response link to the
// remote processing service: connection lifecycle, the authentication
// handshake, request correlation, keepalive, and reconnection with backoff.
// Nothing else in the process touches the transport.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/switchboard/pkg/wire"
)

// State is the link lifecycle position.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateReady          State = "ready"
	StateReconnecting   State = "reconnecting"
	StateFailed         State = "failed" // retry budget exhausted; explicit Connect required
	StateClosed         State = "closed"
)

var (
	// ErrNotReady rejects typed sends attempted before the link is
	// authenticated and open. Returned synchronously, no socket write.
	ErrNotReady = errors.New("supervisor: link not ready")

	// ErrRequestTimeout rejects a request whose reply never arrived.
	ErrRequestTimeout = errors.New("supervisor: request timed out")

	// ErrLinkClosed rejects requests orphaned by a connection teardown.
	ErrLinkClosed = errors.New("supervisor: connection closed")

	// ErrReconnectExhausted marks the terminal failed state.
	ErrReconnectExhausted = errors.New("supervisor: reconnect attempts exhausted")

	// ErrAuthRejected is returned when the supervisor refuses the token.
	ErrAuthRejected = errors.New("supervisor: authentication rejected")
)

// RemoteError carries a supervisor-side error event matched to one request.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "supervisor: remote error: " + e.Message
}

// Config parameterizes a Link.
type Config struct {
	URL   string
	Token string

	RequestTimeout time.Duration // per typed request; default 10s
	PingInterval   time.Duration // keepalive; default 30s
	BackoffBase    time.Duration // first reconnect delay; default 1s, doubles per attempt
	MaxReconnects  int           // default 5
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 5
	}
	return c
}

// Result is the settled outcome of a typed send. An acknowledgment with an
// empty Reply means the supervisor accepted the event but produced no
// payload; callers fall back to local handling in that case.
type Result struct {
	Acked   bool
	Reply   string
	Subject string // email replies only
}

type settled struct {
	frame wire.Frame
	err   error
}

type pendingRequest struct {
	id        string
	predicate func(wire.Frame) bool
	ch        chan settled // buffered 1; settle never blocks
	timer     *time.Timer  // nil when the request has no deadline
}

// Link is the supervisor connection. Construct with New and inject by
// reference; it is safe for concurrent use.
type Link struct {
	cfg Config

	mu         sync.Mutex
	state      State
	conn       *wsConn
	generation int // bumped per physical connection; stale readers no-op
	attempts   int // reconnect attempts used since the last successful auth
	pending    map[string]*pendingRequest
	order      []string // registration order, oldest first
	connecting bool

	runCtx     context.Context
	cancel     context.CancelFunc
	pingCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates an unconnected Link.
func New(cfg Config) *Link {
	return &Link{
		cfg:     cfg.withDefaults(),
		state:   StateDisconnected,
		pending: make(map[string]*pendingRequest),
	}
}

// Connect dials the supervisor and runs the auth handshake. It blocks until
// the link is Ready or the attempt fails; no default deadline is applied, so
// callers impose their own via ctx. Calling Connect on a Failed link resets
// the retry budget and tries again.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if l.connecting || l.state == StateReady {
		l.mu.Unlock()
		return fmt.Errorf("supervisor: connect already in progress or ready")
	}
	l.connecting = true
	l.attempts = 0
	if l.cancel == nil {
		l.runCtx, l.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	l.mu.Unlock()

	err := l.dial(ctx)

	l.mu.Lock()
	l.connecting = false
	if err != nil && (l.state == StateConnecting || l.state == StateAuthenticating) {
		l.state = StateDisconnected
	}
	l.mu.Unlock()
	return err
}

// dial opens one connection and authenticates over it. ctx bounds the await;
// the connection itself is owned by the link's run context.
func (l *Link) dial(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	l.state = StateConnecting
	l.mu.Unlock()

	conn, err := dialWS(ctx, l.cfg.URL, nil)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		return ErrLinkClosed
	}
	l.generation++
	gen := l.generation
	l.conn = conn
	l.state = StateAuthenticating
	// Entries registered against a previous connection can never be
	// answered by this one; reject them before any new frame arrives so a
	// dead generation's predicate cannot steal a live frame.
	orphans := l.takePendingLocked()
	l.mu.Unlock()
	rejectPending(orphans, ErrLinkClosed)

	l.wg.Add(1)
	go l.readLoop(l.runCtx, conn, gen)

	if err := l.authenticate(ctx, conn, gen); err != nil {
		// Invalidate the generation before closing so the read loop's
		// disconnect handler does not schedule a reconnect for a
		// connection we gave up on deliberately. Anything still pending
		// against this generation (an abandoned handshake included) is
		// rejected here, because the disconnect handler will no-op on
		// the mismatch and can never reclaim it.
		var orphans []*pendingRequest
		l.mu.Lock()
		if l.generation == gen {
			l.generation++
			l.conn = nil
			orphans = l.takePendingLocked()
		}
		l.mu.Unlock()
		rejectPending(orphans, ErrLinkClosed)
		conn.Close(websocket.StatusPolicyViolation, "auth failed")
		return err
	}

	l.mu.Lock()
	if l.generation == gen && l.state == StateAuthenticating {
		l.state = StateReady
		l.attempts = 0
		pctx, pcancel := context.WithCancel(l.runCtx)
		l.pingCancel = pcancel
		go l.pingLoop(pctx, conn)
	}
	l.mu.Unlock()

	slog.Info("supervisor link ready", "url", l.cfg.URL)
	return nil
}

// authenticate sends the auth envelope and awaits auth_result through the
// same correlation mechanism ordinary requests use. At most one handshake is
// in flight per connection because dial is the only caller.
func (l *Link) authenticate(ctx context.Context, conn *wsConn, gen int) error {
	pred := func(f wire.Frame) bool {
		switch f.(type) {
		case wire.AuthResult, wire.ErrorFrame:
			return true
		}
		return false
	}

	frame, err := l.roundTrip(ctx, conn, gen, wire.NewAuth(l.cfg.Token), pred, 0)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: %s", ErrAuthRejected, re.Message)
		}
		return fmt.Errorf("supervisor: authenticate: %w", err)
	}

	res, ok := frame.(wire.AuthResult)
	if !ok {
		return fmt.Errorf("supervisor: unexpected auth reply %T", frame)
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrAuthRejected, res.Message)
	}
	return nil
}

// SendSMSEvent forwards an inbound SMS and awaits the correlated outcome:
// a final reply, a bare acknowledgment, or an error. Fails fast with
// ErrNotReady unless the link is authenticated and open.
func (l *Link) SendSMSEvent(ctx context.Context, from, to, body, user string) (*Result, error) {
	conn, gen, err := l.readyConn()
	if err != nil {
		return nil, err
	}

	pred := func(f wire.Frame) bool {
		switch fr := f.(type) {
		case wire.MessageAcknowledged:
			return fr.MessageType == wire.TypeSMSReceived && fr.User == user
		case wire.SendSMSResponse:
			return fr.User == user
		case wire.ErrorFrame:
			return true
		}
		return false
	}

	frame, err := l.roundTrip(ctx, conn, gen, wire.NewSMSReceived(from, to, body, user), pred, l.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return resultFromFrame(frame), nil
}

// SendEmailEvent forwards an inbound email and awaits the correlated outcome.
func (l *Link) SendEmailEvent(ctx context.Context, from, to, subject, body, user string) (*Result, error) {
	conn, gen, err := l.readyConn()
	if err != nil {
		return nil, err
	}

	pred := func(f wire.Frame) bool {
		switch fr := f.(type) {
		case wire.MessageAcknowledged:
			return fr.MessageType == wire.TypeEmailReceived && fr.User == user
		case wire.SendEmailResponse:
			return fr.User == user
		case wire.ErrorFrame:
			return true
		}
		return false
	}

	frame, err := l.roundTrip(ctx, conn, gen, wire.NewEmailReceived(from, to, subject, body, user), pred, l.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return resultFromFrame(frame), nil
}

func resultFromFrame(frame wire.Frame) *Result {
	switch f := frame.(type) {
	case wire.MessageAcknowledged:
		return &Result{Acked: true}
	case wire.SendSMSResponse:
		return &Result{Acked: true, Reply: f.Message}
	case wire.SendEmailResponse:
		return &Result{Acked: true, Reply: f.Message, Subject: f.Subject}
	}
	return &Result{}
}

// readyConn snapshots the current connection, gating typed sends on Ready.
func (l *Link) readyConn() (*wsConn, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady || l.conn == nil {
		if l.state == StateFailed {
			return nil, 0, fmt.Errorf("%w: %w", ErrNotReady, ErrReconnectExhausted)
		}
		return nil, 0, ErrNotReady
	}
	return l.conn, l.generation, nil
}

// roundTrip registers a pending request, writes the envelope, and awaits
// settlement. Registration always precedes the write so a reply can never
// race past its handler. timeout == 0 means no deadline (auth handshake).
func (l *Link) roundTrip(ctx context.Context, conn *wsConn, gen int, env any, pred func(wire.Frame) bool, timeout time.Duration) (wire.Frame, error) {
	data, err := wire.Encode(env)
	if err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	p := &pendingRequest{id: id, predicate: pred, ch: make(chan settled, 1)}

	l.mu.Lock()
	if l.generation != gen || l.conn != conn {
		l.mu.Unlock()
		return nil, ErrLinkClosed
	}
	l.pending[id] = p
	l.order = append(l.order, id)
	if timeout > 0 {
		p.timer = time.AfterFunc(timeout, func() {
			l.settle(id, nil, ErrRequestTimeout)
		})
	}
	l.mu.Unlock()

	if err := conn.Write(ctx, data); err != nil {
		l.settle(id, nil, fmt.Errorf("supervisor: write request: %w", err))
	}

	select {
	case s := <-p.ch:
		return s.frame, s.err
	case <-ctx.Done():
		// The entry stays registered; its timer or the next teardown
		// reclaims it. The ceiling is the fixed request timeout.
		return nil, ctx.Err()
	}
}

// settle resolves or rejects one pending request. Removal and delivery are a
// single path: the entry is deleted and its timer stopped under the lock, so
// a request can never settle twice and a late timer firing after settlement
// is a no-op.
func (l *Link) settle(id string, frame wire.Frame, err error) bool {
	l.mu.Lock()
	p, ok := l.pending[id]
	if ok {
		delete(l.pending, id)
		l.removeOrderLocked(id)
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	l.mu.Unlock()

	if !ok {
		return false
	}
	p.ch <- settled{frame: frame, err: err}
	return true
}

func (l *Link) removeOrderLocked(id string) {
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// takePendingLocked detaches every pending request. Caller holds l.mu and
// delivers the orphans outside the lock.
func (l *Link) takePendingLocked() []*pendingRequest {
	orphans := make([]*pendingRequest, 0, len(l.pending))
	for _, id := range l.order {
		if p := l.pending[id]; p != nil {
			if p.timer != nil {
				p.timer.Stop()
			}
			orphans = append(orphans, p)
		}
	}
	l.pending = make(map[string]*pendingRequest)
	l.order = nil
	return orphans
}

// rejectPending delivers err to detached requests. Settlement channels are
// buffered, so this never blocks even when the caller already gave up.
func rejectPending(orphans []*pendingRequest, err error) {
	for _, p := range orphans {
		p.ch <- settled{err: err}
	}
}

func (l *Link) readLoop(ctx context.Context, conn *wsConn, gen int) {
	defer l.wg.Done()
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			l.handleDisconnect(gen, err)
			return
		}
		frame, derr := wire.Decode(data)
		if derr != nil {
			slog.Warn("supervisor: dropping malformed frame", "error", derr)
			continue
		}
		l.dispatch(frame)
	}
}

// dispatch routes one inbound frame to the oldest pending request whose
// predicate matches. Replies may arrive in any order relative to requests;
// only the predicate decides ownership.
func (l *Link) dispatch(frame wire.Frame) {
	switch f := frame.(type) {
	case wire.Pong:
		return
	case wire.Unrecognized:
		slog.Warn("supervisor: unrecognized frame", "type", f.Type)
		return
	}

	var match string
	l.mu.Lock()
	for _, id := range l.order {
		if p := l.pending[id]; p != nil && p.predicate(frame) {
			match = id
			break
		}
	}
	l.mu.Unlock()

	if match == "" {
		slog.Debug("supervisor: frame matched no pending request", "frame", fmt.Sprintf("%T", frame))
		return
	}
	if ef, ok := frame.(wire.ErrorFrame); ok {
		l.settle(match, nil, &RemoteError{Message: ef.Message})
		return
	}
	l.settle(match, frame, nil)
}

// handleDisconnect reacts to a connection teardown: orphaned requests are
// rejected, then a reconnect is scheduled with exponentially increasing
// delay until the attempt budget runs out.
func (l *Link) handleDisconnect(gen int, cause error) {
	l.mu.Lock()
	if l.generation != gen || l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.conn = nil
	if l.pingCancel != nil {
		l.pingCancel()
		l.pingCancel = nil
	}
	orphans := l.takePendingLocked()
	l.mu.Unlock()

	rejectPending(orphans, ErrLinkClosed)

	l.scheduleReconnect(cause)
}

// scheduleReconnect consumes one retry attempt and arms the redial timer.
// Delays double per attempt (1s, 2s, 4s, 8s, 16s by default); exhausting the
// budget leaves the link Failed until Connect is called again.
func (l *Link) scheduleReconnect(cause error) {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	if l.attempts >= l.cfg.MaxReconnects {
		l.state = StateFailed
		l.mu.Unlock()
		slog.Error("supervisor link failed, retry budget exhausted",
			"attempts", l.cfg.MaxReconnects, "error", cause)
		return
	}
	delay := l.cfg.BackoffBase << l.attempts
	l.attempts++
	attempt := l.attempts
	l.state = StateReconnecting
	l.mu.Unlock()

	slog.Warn("supervisor link lost, scheduling reconnect",
		"attempt", attempt, "max", l.cfg.MaxReconnects, "delay", delay, "error", cause)

	time.AfterFunc(delay, func() {
		if l.runCtx.Err() != nil {
			return
		}
		err := l.dial(l.runCtx)
		if err == nil {
			return
		}
		if errors.Is(err, ErrAuthRejected) {
			// A refused token will not fix itself; stop retrying.
			l.setState(StateDisconnected)
			slog.Error("supervisor reconnect abandoned", "error", err)
			return
		}
		l.scheduleReconnect(err)
	})
}

func (l *Link) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	data, _ := wire.Encode(wire.NewPing())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Fire-and-forget: a write failure surfaces through the
			// read loop's close event, not here.
			if err := conn.Write(ctx, data); err != nil {
				slog.Debug("supervisor: keepalive write failed", "error", err)
				return
			}
		}
	}
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// State returns the current lifecycle position.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Ready reports whether typed sends will be accepted right now.
func (l *Link) Ready() bool {
	return l.State() == StateReady
}

// Stats is a point-in-time snapshot for health reporting.
type Stats struct {
	State             State `json:"state"`
	PendingRequests   int   `json:"pending_requests"`
	ReconnectAttempts int   `json:"reconnect_attempts"`
}

// Stats snapshots the link for /health.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{State: l.state, PendingRequests: len(l.pending), ReconnectAttempts: l.attempts}
}

// Stop closes the link permanently and rejects anything still pending.
func (l *Link) Stop() {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = StateClosed
	conn := l.conn
	l.conn = nil
	if l.pingCancel != nil {
		l.pingCancel()
		l.pingCancel = nil
	}
	cancel := l.cancel
	orphans := l.takePendingLocked()
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	rejectPending(orphans, ErrLinkClosed)
	l.wg.Wait()
}
