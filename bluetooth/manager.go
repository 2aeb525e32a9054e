package bluetooth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/livetranslator/g2link/protocol"
)

var (
	ErrDiscovery    = errors.New("glasses not found")
	ErrTransport    = errors.New("transport failure")
	ErrNotConnected = errors.New("not connected")
	ErrNotRunning   = errors.New("manager not running")
)

// Config is the session configuration.
type Config struct {
	Mode          Mode
	AutoConnect   bool
	UseRightEye   bool
	DisplayFormat DisplayFormat
	// StreamReplies sets the Even-AI streamEnable flag on replies.
	StreamReplies bool
	ScanTimeout   time.Duration
	QueueSize     int
	Teleprompter  protocol.TeleprompterLayout
	Pacing        PacingConfig
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeNotification,
		AutoConnect:   true,
		DisplayFormat: DisplayBoth,
		StreamReplies: true,
		ScanTimeout:   DefaultScanTimeout,
		QueueSize:     DefaultQueueSize,
		Teleprompter:  protocol.DefaultTeleprompterLayout(),
		Pacing:        DefaultPacingConfig(),
	}
}

// EventSink receives session lifecycle events.
type EventSink interface {
	BroadcastConnected(mode string, addresses []string)
	BroadcastDisconnected(reason string)
	BroadcastUpdateSent(mode, title, message string)
	BroadcastUpdateFailed(mode string, err error)
}

type nopSink struct{}

func (nopSink) BroadcastConnected(string, []string)        {}
func (nopSink) BroadcastDisconnected(string)               {}
func (nopSink) BroadcastUpdateSent(string, string, string) {}
func (nopSink) BroadcastUpdateFailed(string, error)        {}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithEventSink(s EventSink) Option {
	return func(m *Manager) { m.events = s }
}

// WithClock overrides the time source for notification timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// task runs on the manager goroutine.
type task func(ctx context.Context)

// Status is a point-in-time view of the session.
type Status struct {
	Running       bool     `json:"running"`
	Connected     bool     `json:"connected"`
	Mode          string   `json:"mode"`
	DisplayFormat string   `json:"display_format"`
	Addresses     []string `json:"addresses"`
	Sent          uint64   `json:"sent"`
	Failed        uint64   `json:"failed"`
	Dropped       uint64   `json:"dropped"`
	Notifications uint64   `json:"notifications"`
}

// Manager is the session controller. All device I/O, counters and latches
// are confined to one goroutine fed by a bounded task queue; the exported
// methods only post tasks to it.
type Manager struct {
	transport Transport
	cfg       Config
	logger    *slog.Logger
	events    EventSink
	now       func() time.Time

	mu        sync.Mutex
	tasks     chan task
	done      chan struct{}
	cancel    context.CancelFunc
	addresses []string

	connected     atomic.Bool
	sent          atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64
	notifications atomic.Uint64

	// owned by the run loop
	links map[Eye]*Link
}

// NewManager creates a session controller on transport. Zero fields of cfg
// other than Pacing take their defaults.
func NewManager(transport Transport, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.DisplayFormat == "" {
		cfg.DisplayFormat = def.DisplayFormat
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = def.ScanTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Teleprompter == (protocol.TeleprompterLayout{}) {
		cfg.Teleprompter = def.Teleprompter
	}

	m := &Manager{
		transport: transport,
		cfg:       cfg,
		logger:    slog.Default(),
		events:    nopSink{},
		now:       time.Now,
		links:     make(map[Eye]*Link, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session", "mode", string(cfg.Mode))
	return m
}

// Config returns the configuration the manager runs with.
func (m *Manager) Config() Config { return m.cfg }

// Start launches the run loop and, with AutoConnect, queues a connect.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return fmt.Errorf("manager already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.tasks = make(chan task, m.cfg.QueueSize)
	m.done = make(chan struct{})
	go m.run(ctx, m.tasks, m.done)
	m.logger.Info("session started", "auto_connect", m.cfg.AutoConnect)

	if m.cfg.AutoConnect {
		m.tasks <- func(ctx context.Context) {
			if err := m.connect(ctx); err != nil {
				m.logger.Error("auto connect failed", "err", err)
			}
		}
	}
	return nil
}

// Stop cancels the run loop, waits for it to exit and disconnects. Queued
// updates are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.tasks = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("session stopped")
}

// Connect discovers, connects and authenticates the eyes the mode needs.
func (m *Manager) Connect(ctx context.Context) error {
	return m.call(ctx, m.connect)
}

// Disconnect tears down the links and resets their state.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.call(ctx, func(context.Context) error {
		return m.teardown("disconnect requested")
	})
}

// Flush waits until every task queued before it has run.
func (m *Manager) Flush(ctx context.Context) error {
	return m.call(ctx, func(context.Context) error { return nil })
}

// IsConnected reports whether the session is authenticated.
func (m *Manager) IsConnected() bool { return m.connected.Load() }

// Update formats an utterance and queues it for the configured channel. It
// never blocks; when the queue is full or the manager is stopped the update
// is dropped and logged.
func (m *Manager) Update(original, translated, speaker string) {
	title, message := FormatDisplay(m.cfg.DisplayFormat, original, translated, speaker)

	m.mu.Lock()
	tasks := m.tasks
	m.mu.Unlock()

	if tasks == nil {
		m.dropped.Add(1)
		m.logger.Warn("update dropped", "reason", ErrNotRunning)
		return
	}
	select {
	case tasks <- func(ctx context.Context) { m.dispatch(ctx, title, message) }:
	default:
		m.dropped.Add(1)
		m.logger.Warn("update dropped", "reason", "queue full", "queue_size", cap(tasks))
	}
}

// Status returns the current session status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	running := m.cancel != nil
	addrs := append([]string(nil), m.addresses...)
	m.mu.Unlock()

	return Status{
		Running:       running,
		Connected:     m.connected.Load(),
		Mode:          string(m.cfg.Mode),
		DisplayFormat: string(m.cfg.DisplayFormat),
		Addresses:     addrs,
		Sent:          m.sent.Load(),
		Failed:        m.failed.Load(),
		Dropped:       m.dropped.Load(),
		Notifications: m.notifications.Load(),
	}
}

func (m *Manager) run(ctx context.Context, tasks <-chan task, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if err := m.teardown("stopped"); err != nil {
			m.logger.Warn("disconnect on stop failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tasks:
			t(ctx)
		}
	}
}

// call posts fn to the run loop and waits for its result. fn sees a context
// cancelled by either the loop or the caller.
func (m *Manager) call(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	tasks, done := m.tasks, m.done
	m.mu.Unlock()
	if tasks == nil {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	t := func(loopCtx context.Context) {
		runCtx, cancel := context.WithCancel(loopCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		reply <- fn(runCtx)
	}

	select {
	case tasks <- t:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requiredEyes lists the eyes the mode writes to.
func (m *Manager) requiredEyes() []Eye {
	if m.cfg.Mode == ModeNotification {
		return []Eye{LeftEye, RightEye}
	}
	if m.cfg.UseRightEye {
		return []Eye{RightEye}
	}
	return []Eye{LeftEye}
}

func (m *Manager) connect(ctx context.Context) error {
	if m.connected.Load() {
		return nil
	}

	devices, err := m.transport.Scan(ctx, m.cfg.ScanTimeout)
	if err != nil {
		return fmt.Errorf("%w: scan: %w", ErrDiscovery, err)
	}
	found := findEyes(devices)
	need := m.requiredEyes()
	for _, eye := range need {
		if _, ok := found[eye]; !ok {
			return fmt.Errorf("%w: no %s eye among %d devices", ErrDiscovery, eye, len(devices))
		}
	}

	for _, eye := range need {
		dev := found[eye]
		m.logger.Info("found eye", "eye", eye.String(), "name", dev.Name, "address", dev.Address)
		conn, err := m.transport.Connect(ctx, dev)
		if err != nil {
			return m.abortConnect(fmt.Errorf("%w: connect %s eye: %w", ErrTransport, eye, err))
		}
		m.links[eye] = newLink(eye, conn)
	}

	for _, eye := range need {
		link := m.links[eye]
		for _, uuid := range []string{NotificationNotifyUUID, ContentNotifyUUID} {
			if err := link.conn.SubscribeNotify(ctx, uuid, m.notifyHandler(eye, uuid)); err != nil {
				return m.abortConnect(fmt.Errorf("%w: subscribe %s eye: %w", ErrTransport, eye, err))
			}
		}
	}

	for _, eye := range need {
		m.logger.Info("authenticating", "eye", eye.String())
		if err := Authenticate(ctx, m.links[eye], m.cfg.Pacing); err != nil {
			return m.abortConnect(fmt.Errorf("authenticate %s eye: %w", eye, err))
		}
	}
	if err := sleepCtx(ctx, m.cfg.Pacing.SettleDelay); err != nil {
		return m.abortConnect(err)
	}

	addrs := make([]string, 0, len(need))
	for _, eye := range need {
		addrs = append(addrs, m.links[eye].Address())
	}
	m.mu.Lock()
	m.addresses = addrs
	m.mu.Unlock()

	m.connected.Store(true)
	m.logger.Info("connected and authenticated", "eyes", len(need))
	m.events.BroadcastConnected(string(m.cfg.Mode), addrs)
	return nil
}

func (m *Manager) abortConnect(err error) error {
	if terr := m.teardown("connect failed"); terr != nil {
		m.logger.Warn("teardown after failed connect", "err", terr)
	}
	return err
}

// teardown disconnects every link. Links are dropped even when their
// disconnect fails.
func (m *Manager) teardown(reason string) error {
	if len(m.links) == 0 && !m.connected.Load() {
		return nil
	}
	wasConnected := m.connected.Swap(false)

	var err error
	for eye, link := range m.links {
		err = multierr.Append(err, link.close())
		delete(m.links, eye)
	}
	m.mu.Lock()
	m.addresses = nil
	m.mu.Unlock()

	if wasConnected {
		m.logger.Info("disconnected", "reason", reason)
		m.events.BroadcastDisconnected(reason)
	}
	return err
}

func (m *Manager) dispatch(ctx context.Context, title, message string) {
	mode := string(m.cfg.Mode)
	if !m.connected.Load() {
		m.dropped.Add(1)
		m.logger.Debug("update skipped", "reason", ErrNotConnected)
		return
	}

	var err error
	switch m.cfg.Mode {
	case ModeNotification:
		doc := protocol.NewNotificationDocument(title, message, "", m.now())
		err = SendNotification(ctx, m.links[RightEye], m.links[LeftEye], doc, m.cfg.Pacing)
	case ModeTeleprompter:
		err = SendTeleprompter(ctx, m.primaryLink(), displayText(title, message), m.cfg.Teleprompter, m.cfg.Pacing)
	case ModeEvenAI:
		err = SendEvenAI(ctx, m.primaryLink(), displayText(title, message), m.cfg.StreamReplies, m.cfg.Pacing)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}

	if err != nil {
		if ctx.Err() != nil {
			m.logger.Debug("update interrupted", "err", err)
			return
		}
		m.failed.Add(1)
		m.logger.Error("update failed", "err", err)
		m.events.BroadcastUpdateFailed(mode, err)
		if errors.Is(err, ErrTransport) {
			if terr := m.teardown("transport failure"); terr != nil {
				m.logger.Warn("teardown after transport failure", "err", terr)
			}
		}
		return
	}

	m.sent.Add(1)
	m.logger.Debug("update sent", "title", title, "bytes", len(message))
	m.events.BroadcastUpdateSent(mode, title, message)
}

func (m *Manager) primaryLink() *Link {
	if m.cfg.UseRightEye {
		return m.links[RightEye]
	}
	return m.links[LeftEye]
}

// notifyHandler logs frames the glasses send back. It runs on the
// transport's goroutine and must not touch link state.
func (m *Manager) notifyHandler(eye Eye, uuid string) func([]byte) {
	return func(data []byte) {
		m.notifications.Add(1)
		if !m.logger.Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		attrs := []any{"eye", eye.String(), "char", uuid[len(uuid)-4:], "bytes", len(data)}
		if f, err := protocol.ParsePacket(data); err == nil {
			attrs = append(attrs, "seq", f.Seq, "service", f.Service.String())
			if fields, err := protocol.ParseFields(f.Payload); err == nil {
				attrs = append(attrs, "fields", protocol.FormatFields(fields))
			}
		} else {
			attrs = append(attrs, "raw", hex.EncodeToString(data))
		}
		m.logger.Debug("notification received", attrs...)
	}
}
