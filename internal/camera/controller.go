package camera

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StateListingDevices
	StateDecoding
	StateError
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting_permission"
	case StateListingDevices:
		return "listing_devices"
	case StateDecoding:
		return "decoding"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status lines published while a session runs.
const (
	StatusRequesting = "Requesting camera..."
	StatusStarted    = "Camera started — scan a barcode!"
	StatusStopped    = "Camera stopped."
)

const DefaultRepeatWindow = 2 * time.Second

type Options struct {
	// RepeatWindow suppresses a code identical to the previous read until
	// the code has been out of view for this long.
	RepeatWindow time.Duration
	// OnStatus receives every status line change.
	OnStatus func(status string)
	// OnCode receives each unique read in its own goroutine. ctx is the
	// session context and is cancelled by Stop.
	OnCode func(ctx context.Context, code string)
	// OnError receives every terminal failure.
	OnError func(err *Error)
	Now     func() time.Time
}

// Controller runs at most one scanning session at a time.
type Controller struct {
	devices MediaDevices
	decoder Decoder
	logger  *slog.Logger
	opts    Options

	mu      sync.Mutex
	state   State
	status  string
	lastErr *Error
	session *Session
	// stopRequested records a Stop that arrived before the session existed.
	stopRequested bool
	cancelStart   context.CancelFunc
}

func NewController(devices MediaDevices, decoder Decoder, logger *slog.Logger, opts Options) *Controller {
	if opts.RepeatWindow <= 0 {
		opts.RepeatWindow = DefaultRepeatWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		devices: devices,
		decoder: decoder,
		logger:  logger,
		opts:    opts,
		state:   StateIdle,
	}
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State     State
	Status    string
	CanStart  bool
	LastError *Error
	SessionID string
	Device    *Device
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:     c.state,
		Status:    c.status,
		CanStart:  c.canStartLocked(),
		LastError: c.lastErr,
	}
	if c.session != nil {
		snap.SessionID = c.session.ID
		d := c.session.Device
		snap.Device = &d
	}
	return snap
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// CanStart reports whether the start control should be enabled.
func (c *Controller) CanStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canStartLocked()
}

func (c *Controller) canStartLocked() bool {
	switch c.state {
	case StateIdle, StateError, StateStopped:
		return true
	default:
		return false
	}
}

// Start walks Idle → RequestingPermission → ListingDevices → Decoding. Any
// failure on the way returns an *Error and leaves the controller startable.
// The session outlives ctx; only Stop ends it. A Stop that arrives before
// decoding begins makes Start return ErrStopped with the controller Stopped.
func (c *Controller) Start(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if !c.canStartLocked() {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.state = StateRequestingPermission
	c.lastErr = nil
	c.stopRequested = false
	ctx, cancelStart := context.WithCancel(ctx)
	c.cancelStart = cancelStart
	c.mu.Unlock()
	defer cancelStart()
	c.setStatus(StatusRequesting)

	if !c.devices.SecureContext() {
		return nil, c.fail(ErrInsecureContext)
	}
	if !c.devices.Supported() {
		return nil, c.fail(ErrUnsupported)
	}

	err := c.devices.RequestAccess(ctx)
	if c.stoppedBeforeDecoding() {
		return nil, ErrStopped
	}
	if err != nil {
		return nil, c.fail(err)
	}

	c.setState(StateListingDevices)
	devices, err := c.devices.VideoInputs(ctx)
	if c.stoppedBeforeDecoding() {
		return nil, ErrStopped
	}
	if err != nil {
		return nil, c.fail(err)
	}
	if len(devices) == 0 {
		return nil, c.fail(ErrNoDevice)
	}
	for i, d := range devices {
		c.logger.Debug("video input", "index", i, "device_id", d.ID, "label", d.Label)
	}
	// The last device is usually the rear camera on phones.
	device := devices[len(devices)-1]

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:     uuid.NewString(),
		Device: device,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	decodeDone, err := c.decoder.Start(sessCtx, device.ID, func(code string, err error) {
		c.handleAttempt(sessCtx, s, code, err)
	})
	if err != nil {
		cancel()
		if c.stoppedBeforeDecoding() {
			return nil, ErrStopped
		}
		return nil, c.fail(err)
	}

	c.mu.Lock()
	stop := c.stopRequested
	c.stopRequested = false
	c.state = StateDecoding
	c.session = s
	c.mu.Unlock()

	go c.watch(s, decodeDone)
	if stop {
		// Stop raced the decoder start; watch settles the controller in Stopped.
		s.Stop()
		return nil, ErrStopped
	}
	c.logger.Info("camera session started", "session_id", s.ID, "device_id", device.ID, "devices", len(devices))
	c.setStatus(StatusStarted)
	return s, nil
}

// Stop ends the running session, if any. While a Start is still requesting
// permission or listing devices, the stop is recorded and that Start ends in
// Stopped instead of decoding.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.session
	if s == nil && (c.state == StateRequestingPermission || c.state == StateListingDevices) {
		c.stopRequested = true
		c.cancelStart()
	}
	c.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// stoppedBeforeDecoding settles a pending Stop: it moves the controller to
// Stopped and reports true.
func (c *Controller) stoppedBeforeDecoding() bool {
	c.mu.Lock()
	stop := c.stopRequested
	if stop {
		c.stopRequested = false
		c.state = StateStopped
	}
	c.mu.Unlock()
	if stop {
		c.logger.Info("camera start stopped before decoding")
		c.setStatus(StatusStopped)
	}
	return stop
}

func (c *Controller) watch(s *Session, decodeDone <-chan error) {
	err := <-decodeDone
	s.handlers.Wait()
	s.cancel()

	c.mu.Lock()
	current := c.session == s
	if current {
		c.session = nil
	}
	c.mu.Unlock()

	if current {
		if err == nil || s.stopped.Load() || errors.Is(err, context.Canceled) {
			c.logger.Info("camera session stopped", "session_id", s.ID)
			c.setState(StateStopped)
			c.setStatus(StatusStopped)
		} else {
			c.fail(err)
		}
	}
	close(s.done)
}

func (c *Controller) handleAttempt(ctx context.Context, s *Session, code string, err error) {
	if err != nil {
		if !errors.Is(err, ErrNothingFound) {
			c.logger.Warn("decode error", "session_id", s.ID, "error", err)
		}
		return
	}
	if code == "" || !s.accept(code, c.opts.Now(), c.opts.RepeatWindow) {
		return
	}

	c.logger.Info("barcode scanned", "session_id", s.ID, "code", code)
	c.setStatus("Scanned: " + code)
	if c.opts.OnCode != nil {
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			c.opts.OnCode(ctx, code)
		}()
	}
}

func (c *Controller) fail(err error) *Error {
	camErr := NewError(err)
	c.mu.Lock()
	c.state = StateError
	c.lastErr = camErr
	c.mu.Unlock()

	c.logger.Warn("camera error", "kind", camErr.Kind.String(), "error", err)
	c.setStatus(camErr.Error())
	if c.opts.OnError != nil {
		c.opts.OnError(camErr)
	}
	return camErr
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(status)
	}
}

// Session is a running decode subscription.
type Session struct {
	ID     string
	Device Device

	cancel   context.CancelFunc
	done     chan struct{}
	stopped  atomic.Bool
	handlers sync.WaitGroup

	mu       sync.Mutex
	lastCode string
	lastSeen time.Time
}

// Stop cancels decoding and waits for the session to wind down, including
// in-flight OnCode calls. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopped.Store(true)
	s.cancel()
	<-s.done
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// accept reports whether code is a new read. A repeat of the previous code
// is dropped while it keeps arriving within window of the last sighting.
func (s *Session) accept(code string, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	repeat := code == s.lastCode && now.Sub(s.lastSeen) < window
	s.lastCode = code
	s.lastSeen = now
	return !repeat
}
