// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/moviememo/internal/identity"
	"github.com/desertthunder/moviememo/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails once maxWrites writes have succeeded
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// JSONResponse builds an [http.Response] with a JSON body for [MockRoundTripper].
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// FakeProvider is an in-memory [identity.Provider].
type FakeProvider struct {
	*identity.Notifier

	mu    sync.Mutex
	users map[string]fakeAccount
	calls []string

	Interactive  *models.Identity
	SignUpErr    error
	SignInErr    error
	SignOutErr   error
	VerifyErr    error
	ResetErr     error
	SubscribeErr error
}

type fakeAccount struct {
	password string
	identity models.Identity
}

var _ identity.Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Notifier: identity.NewNotifier(), users: map[string]fakeAccount{}}
}

// AddUser registers an account for credential sign-in.
func (f *FakeProvider) AddUser(email, password string, id models.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = fakeAccount{password: password, identity: id}
}

// Calls returns the provider methods invoked so far, in order.
func (f *FakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeProvider) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *FakeProvider) SignInInteractive(ctx context.Context) (*models.Identity, error) {
	f.record("SignInInteractive")
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	if f.Interactive == nil {
		return nil, identity.NewError("POPUP_CLOSED_BY_USER")
	}
	id := *f.Interactive
	f.Publish(&id)
	return &id, nil
}

func (f *FakeProvider) SignInWithCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	f.record("SignInWithCredentials")
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}

	f.mu.Lock()
	acct, ok := f.users[email]
	f.mu.Unlock()
	if !ok || acct.password != password {
		return nil, identity.NewError("INVALID_LOGIN_CREDENTIALS")
	}

	id := acct.identity
	f.Publish(&id)
	return &id, nil
}

func (f *FakeProvider) SignUpWithCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	f.record("SignUpWithCredentials")
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}

	f.mu.Lock()
	if _, ok := f.users[email]; ok {
		f.mu.Unlock()
		return nil, identity.NewError("EMAIL_EXISTS")
	}
	id := models.Identity{UID: "uid-" + email, Email: email}
	f.users[email] = fakeAccount{password: password, identity: id}
	f.mu.Unlock()

	f.Publish(&id)
	return &id, nil
}

func (f *FakeProvider) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.Publish(nil)
	return nil
}

func (f *FakeProvider) SendVerificationEmail(ctx context.Context, id *models.Identity) error {
	f.record("SendVerificationEmail")
	return f.VerifyErr
}

func (f *FakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	f.record("SendPasswordReset")
	return f.ResetErr
}

func (f *FakeProvider) OnSessionChange(fn func(*models.Identity)) (identity.Unsubscribe, error) {
	f.record("OnSessionChange")
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	return f.Subscribe(fn), nil
}
