// File: internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// ErrManagerClosed is returned when a session is requested after Shutdown.
var ErrManagerClosed = errors.New("browser manager is shut down")

// Manager owns one Chrome process started through a chromedp exec allocator.
// Every session is an isolated browser context (its own cookie store) inside
// that process.
type Manager struct {
	cfg        config.BrowserConfig
	navTimeout time.Duration
	logger     *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
	closed   bool

	initOnce sync.Once
	initErr  error
}

var _ schemas.BrowserLauncher = (*Manager)(nil)

// NewManager prepares a manager. Chrome is started lazily by the first
// NewSession call. The browser lives until Shutdown or until ctx is cancelled.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("browser manager requires a configuration")
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, DefaultAllocatorOptions(cfg.Browser)...)

	m := &Manager{
		cfg:         cfg.Browser,
		navTimeout:  cfg.Network.NavigationTimeout,
		logger:      logger.Named("browser_manager"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sessions:    make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created (initialization deferred).")
	return m, nil
}

// initialize starts the browser process once.
func (m *Manager) initialize() error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Headless))
		browserCtx, browserCancel := chromedp.NewContext(m.allocCtx,
			chromedp.WithLogf(m.logger.Sugar().Debugf),
			chromedp.WithErrorf(m.logger.Sugar().Warnf),
		)
		// An empty Run allocates the browser and its first target.
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			m.initErr = fmt.Errorf("failed to launch browser: %w", err)
			return
		}
		m.browserCtx, m.browserCancel = browserCtx, browserCancel
		m.logger.Info("Browser launched.")
	})
	return m.initErr
}

// NewSession creates an isolated browser context with a single tab.
func (m *Manager) NewSession(ctx context.Context) (schemas.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}

	if err := m.initialize(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	sessCtx, sessCancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())

	// The first Run creates the target, and the context it receives bounds the
	// target's lifetime, so it must be sessCtx itself rather than a timeout child.
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(sessCtx) }()
	select {
	case err := <-errc:
		if err != nil {
			sessCancel()
			return nil, fmt.Errorf("failed to open browser context: %w", err)
		}
	case <-time.After(m.waitTimeout()):
		sessCancel()
		return nil, fmt.Errorf("timed out opening browser context after %s", m.waitTimeout())
	case <-ctx.Done():
		sessCancel()
		return nil, ctx.Err()
	}

	s := &Session{
		id:          id,
		ctx:         sessCtx,
		cancel:      sessCancel,
		logger:      m.logger.With(zap.String("session_id", id)),
		waitTimeout: m.waitTimeout(),
		navTimeout:  m.navTimeout,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sessCancel()
		return nil, ErrManagerClosed
	}
	m.wg.Add(1)
	m.sessions[id] = s
	m.mu.Unlock()

	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", id))
	}

	m.logger.Info("New browser session created.", zap.String("session_id", id))
	return s, nil
}

func (m *Manager) waitTimeout() time.Duration {
	if m.cfg.WaitTimeout > 0 {
		return m.cfg.WaitTimeout
	}
	return 10 * time.Second
}

// Shutdown closes every open session and terminates the browser. It is safe to
// call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	m.logger.Info("Shutting down browser manager.", zap.Int("open_sessions", len(open)))
	for _, s := range open {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error closing session during shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	}

	var shutdownErr error
	if m.browserCtx != nil {
		cancelDone := make(chan error, 1)
		go func() { cancelDone <- chromedp.Cancel(m.browserCtx) }()
		select {
		case err := <-cancelDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				shutdownErr = fmt.Errorf("failed to close browser: %w", err)
			}
		case <-time.After(shutdownGracePeriod):
			shutdownErr = errors.New("timed out closing browser")
		}
		m.browserCancel()
	}
	m.allocCancel()

	m.logger.Info("Browser manager shutdown complete.")
	return shutdownErr
}
