// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/avasilev/shopbridge/api/schemas"
)

// -- Browser Context Mock --

// MockBrowserContext mocks the schemas.BrowserContext interface.
type MockBrowserContext struct {
	mock.Mock
}

var _ schemas.BrowserContext = (*MockBrowserContext)(nil)

func (m *MockBrowserContext) ID() string { return m.Called().String(0) }

func (m *MockBrowserContext) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowserContext) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserContext) SetCookie(ctx context.Context, name, value string) error {
	return m.Called(ctx, name, value).Error(0)
}

func (m *MockBrowserContext) Cookie(ctx context.Context, name string) (schemas.Cookie, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(schemas.Cookie), args.Bool(1), args.Error(2)
}

func (m *MockBrowserContext) Fill(ctx context.Context, sel schemas.Selector, value string) error {
	return m.Called(ctx, sel, value).Error(0)
}

func (m *MockBrowserContext) Press(ctx context.Context, sel schemas.Selector, key string) error {
	return m.Called(ctx, sel, key).Error(0)
}

func (m *MockBrowserContext) Text(ctx context.Context, sel schemas.Selector) (string, error) {
	args := m.Called(ctx, sel)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserContext) Value(ctx context.Context, sel schemas.Selector) (string, error) {
	args := m.Called(ctx, sel)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserContext) WaitVisible(ctx context.Context, sel schemas.Selector) error {
	return m.Called(ctx, sel).Error(0)
}

func (m *MockBrowserContext) Exists(ctx context.Context, sel schemas.Selector) (bool, error) {
	args := m.Called(ctx, sel)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowserContext) Evidence(ctx context.Context) (*schemas.Evidence, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Evidence), args.Error(1)
}

func (m *MockBrowserContext) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Browser Launcher Mock --

// MockBrowserLauncher mocks the schemas.BrowserLauncher interface. Sessions are
// handed out in the order they were queued with NewSession expectations.
type MockBrowserLauncher struct {
	mock.Mock
	mu       sync.Mutex
	sessions int
}

var _ schemas.BrowserLauncher = (*MockBrowserLauncher)(nil)

func (m *MockBrowserLauncher) NewSession(ctx context.Context) (schemas.BrowserContext, error) {
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.BrowserContext), args.Error(1)
}

func (m *MockBrowserLauncher) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// SessionCount returns how many sessions were requested.
func (m *MockBrowserLauncher) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions
}

// -- Run Store Mock --

// MockRunStore mocks the schemas.RunStore interface.
type MockRunStore struct {
	mock.Mock
}

var _ schemas.RunStore = (*MockRunStore)(nil)

func (m *MockRunStore) SaveRun(ctx context.Context, run *schemas.RunResult) error {
	return m.Called(ctx, run).Error(0)
}

// -- Token Issuer Mock --

// MockTokenIssuer mocks a token issuer of the session bridge.
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(ctx context.Context) (schemas.Token, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.Token), args.Error(1)
}
