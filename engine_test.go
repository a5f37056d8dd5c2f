package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/detector"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword   = "Correct-Horse-9-Battery"
	desktopUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	mobileUA       = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
	testSigningKey = "0123456789abcdef0123456789abcdef"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	byEmail  map[string]string

	getErr    error
	updateErr error

	getByEmailCalls  int
	updateHashCalls  int
	recordLoginCalls int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
	}
}

func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++
	if m.getErr != nil {
		return Account{}, m.getErr
	}
	id, ok := m.byEmail[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *mockAccountStore) GetByID(ctx context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return Account{}, m.getErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *mockAccountStore) Create(ctx context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[a.Email]; exists {
		return ErrAccountExists
	}
	m.accounts[a.ID] = a
	m.byEmail[a.Email] = a.ID
	return nil
}

func (m *mockAccountStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateHashCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = hash
	m.accounts[id] = a
	return nil
}

func (m *mockAccountStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLoginCalls++
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.LastLoginAt = at
	m.accounts[id] = a
	return nil
}

func (m *mockAccountStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	delete(m.byEmail, a.Email)
	return nil
}

func (m *mockAccountStore) hash(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].PasswordHash
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *mockAccountStore
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.SigningMethod = "hs256"
	cfg.Session.PrivateKey = []byte(testSigningKey)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMockAccountStore()
	clock := newTestClock()
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, mr: mr, rdb: rdb, clock: clock}
}

func (env *testEnv) seed(t testing.TB, email, pass string, role Role) Account {
	t.Helper()
	hash, err := env.engine.passwordHash.Hash(pass)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := Account{
		ID:           fmt.Sprintf("acct-%d", len(env.store.accounts)+1),
		Email:        email,
		PasswordHash: hash,
		Name:         "Test " + string(role),
		Role:         role,
	}
	if err := env.store.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func (env *testEnv) lockoutFailures(t *testing.T, email string) int {
	t.Helper()
	n, err := limiters.NewLockoutLimiter(env.rdb, env.engine.config.lockoutConfig()).FailureCount(context.Background(), email)
	if err != nil {
		t.Fatalf("failure count: %v", err)
	}
	return n
}

func (env *testEnv) rateAttempts(t *testing.T, client ClientContext) int {
	t.Helper()
	id := rate.Identifier(env.engine.config.RateLimit.IdentifierSalt, client.IP, client.UserAgent)
	n, err := rate.New(env.rdb, env.engine.config.rateConfig()).Attempts(context.Background(), id)
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	return n
}

func (env *testEnv) countEvents(t *testing.T, accountID string, typ audit.Type) int {
	t.Helper()
	n, err := env.engine.auditStore.Count(context.Background(), accountID, typ, time.Time{})
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return int(n)
}

var desktop = ClientContext{IP: "1.1.1.1", UserAgent: desktopUA}

func TestAuthenticateSuccessIssuesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.seed(t, "a@x.com", testPassword, RoleEditor)

	res, err := env.engine.Authenticate(context.Background(), "  A@X.com ", testPassword, desktop)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.AccountID != acct.ID || res.Role != RoleEditor || res.Email != "a@x.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Session.Token == "" {
		t.Fatalf("expected session token")
	}
	if got := res.Session.ExpiresAt.Sub(res.Session.IssuedAt); got != time.Hour {
		t.Fatalf("expected 1h token validity, got %s", got)
	}
	if res.Notification != nil {
		t.Fatalf("first login should not notify, got %+v", res.Notification)
	}

	sess, err := env.engine.ValidateSession(context.Background(), res.Session.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if sess.AccountID != acct.ID || sess.Role != RoleEditor || sess.Name != acct.Name {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if env.countEvents(t, acct.ID, audit.TypeLoginSuccess) != 1 {
		t.Fatalf("expected one login_success event")
	}
	if env.store.recordLoginCalls != 1 {
		t.Fatalf("expected last login to be recorded")
	}
	if env.engine.metrics.Value(MetricLoginSuccess) != 1 {
		t.Fatalf("expected login success metric")
	}
}

func TestAuthenticateUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)

	_, errUnknown := env.engine.Authenticate(context.Background(), "nobody@x.com", testPassword, desktop)
	_, errWrong := env.engine.Authenticate(context.Background(), "a@x.com", "wrong-password", desktop)

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("errors must be identical: %q vs %q", errUnknown, errWrong)
	}
	if LoginErrorMessage(errUnknown) != GenericLoginMessage {
		t.Fatalf("unexpected message %q", LoginErrorMessage(errUnknown))
	}
	if env.lockoutFailures(t, "nobody@x.com") != 1 {
		t.Fatalf("unknown emails are charged to the lockout guard")
	}
}

func TestAuthenticateMalformedEmailChargesOnlyRateLimiter(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.Authenticate(context.Background(), "not-an-email", testPassword, desktop)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) == 0 {
		t.Fatalf("expected field details, got %v", err)
	}
	if LoginErrorMessage(err) != GenericLoginMessage {
		t.Fatalf("validation failures must render the generic message")
	}
	if env.store.getByEmailCalls != 0 {
		t.Fatalf("malformed input must not reach the account store")
	}
	if env.lockoutFailures(t, "not-an-email") != 0 {
		t.Fatalf("malformed input must not touch the lockout guard")
	}
	if env.rateAttempts(t, desktop) != 1 {
		t.Fatalf("malformed input must be charged to the rate limiter")
	}
}

func TestAuthenticateOverlongPasswordRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)

	_, err := env.engine.Authenticate(context.Background(), "a@x.com", strings.Repeat("x", 129), desktop)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateSixthAttemptRateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Authenticate(ctx, "a@x.com", "wrong", desktop); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, desktop)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var te *ThrottleError
	if !errors.As(err, &te) || te.RetryAfter != 30*time.Minute {
		t.Fatalf("expected 30m retry bucket, got %v", err)
	}
	if LoginErrorMessage(err) != GenericLoginMessage {
		t.Fatalf("throttling must render the generic message")
	}

	other := ClientContext{IP: "9.9.9.9", UserAgent: desktopUA}
	if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, other); err != nil {
		t.Fatalf("another client must not be throttled: %v", err)
	}

	env.clock.Advance(30*time.Minute + time.Second)
	if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, desktop); err != nil {
		t.Fatalf("block should have expired: %v", err)
	}
}

func TestAuthenticateLockoutAfterTenFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.seed(t, "a@x.com", testPassword, RoleViewer)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		client := ClientContext{IP: fmt.Sprintf("10.0.0.%d", i), UserAgent: desktopUA}
		if _, err := env.engine.Authenticate(ctx, "a@x.com", "wrong", client); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	fresh := ClientContext{IP: "10.0.1.1", UserAgent: desktopUA}
	_, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, fresh)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected account locked, got %v", err)
	}
	var te *ThrottleError
	if !errors.As(err, &te) || te.RetryAfter != time.Hour {
		t.Fatalf("expected 1h retry bucket, got %v", err)
	}
	if env.countEvents(t, acct.ID, audit.TypeAccountLocked) != 1 {
		t.Fatalf("expected one account_locked event")
	}
	if env.engine.metrics.Value(MetricAccountLocked) != 1 {
		t.Fatalf("expected account locked metric")
	}

	env.clock.Advance(time.Hour + time.Second)
	if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, fresh); err != nil {
		t.Fatalf("lock should have expired: %v", err)
	}
}

func concurrentLogins(env *testEnv, n int, client func(i int) ClientContext) map[error]int {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(map[error]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := env.engine.Authenticate(context.Background(), "a@x.com", "wrong-password", client(i))
			var kind error
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				kind = ErrInvalidCredentials
			case errors.Is(err, ErrRateLimited):
				kind = ErrRateLimited
			case errors.Is(err, ErrAccountLocked):
				kind = ErrAccountLocked
			default:
				kind = err
			}
			mu.Lock()
			results[kind]++
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func TestAuthenticateConcurrentBurstFromOneClient(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)

	results := concurrentLogins(env, 40, func(int) ClientContext { return desktop })

	if results[ErrInvalidCredentials] != 5 || results[ErrRateLimited] != 35 || len(results) != 2 {
		t.Fatalf("expected 5 password checks and 35 throttled attempts, got %v", results)
	}
	if env.rateAttempts(t, desktop) != 5 {
		t.Fatalf("expected five stored attempts, got %d", env.rateAttempts(t, desktop))
	}
	if env.engine.metrics.Value(MetricLoginFailure) != 5 {
		t.Fatalf("only five attempts may reach password verification")
	}
}

func TestAuthenticateConcurrentBurstAcrossClients(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.seed(t, "a@x.com", testPassword, RoleViewer)

	results := concurrentLogins(env, 40, func(i int) ClientContext {
		return ClientContext{IP: fmt.Sprintf("10.1.0.%d", i), UserAgent: desktopUA}
	})

	if results[ErrInvalidCredentials] != 10 || results[ErrAccountLocked] != 30 || len(results) != 2 {
		t.Fatalf("expected 10 password checks and 30 locked attempts, got %v", results)
	}
	if env.countEvents(t, acct.ID, audit.TypeAccountLocked) != 1 {
		t.Fatalf("expected exactly one account_locked event")
	}

	fresh := ClientContext{IP: "10.2.0.1", UserAgent: desktopUA}
	if _, err := env.engine.Authenticate(context.Background(), "a@x.com", testPassword, fresh); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("correct password must be refused while locked, got %v", err)
	}
}

func TestAuthenticateSuccessResetsCounters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = env.engine.Authenticate(ctx, "a@x.com", "wrong", desktop)
	}
	if env.lockoutFailures(t, "a@x.com") != 3 || env.rateAttempts(t, desktop) != 3 {
		t.Fatalf("expected three recorded failures")
	}

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, desktop); err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
		if env.lockoutFailures(t, "a@x.com") != 0 || env.rateAttempts(t, desktop) != 0 {
			t.Fatalf("login %d must clear both counters", i+1)
		}
	}
}

func TestAuthenticateFailsClosedWhenRedisDown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)
	env.mr.Close()

	_, err := env.engine.Authenticate(context.Background(), "a@x.com", testPassword, desktop)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestAuthenticateFailsClosedWhenAccountStoreDown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.getErr = errors.New("connection refused")

	_, err := env.engine.Authenticate(context.Background(), "a@x.com", testPassword, desktop)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestAuthenticateNewIPAndDeviceWarns(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)
	ctx := context.Background()

	if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, desktop); err != nil {
		t.Fatalf("first login: %v", err)
	}
	env.clock.Advance(time.Minute)

	mobile := ClientContext{IP: "2.2.2.2", UserAgent: mobileUA}
	res, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, mobile)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	want := []string{detector.ReasonNewIP, detector.ReasonNewDevice}
	if strings.Join(res.Risk.Reasons, ",") != strings.Join(want, ",") {
		t.Fatalf("expected reasons %v, got %v", want, res.Risk.Reasons)
	}
	if res.Risk.Risk != "medium" || res.Risk.Action != "warn" || !res.Risk.Suspicious {
		t.Fatalf("unexpected risk: %+v", res.Risk)
	}
	if res.Notification == nil || res.Notification.Kind != TemplateNewLogin || res.Notification.To != "a@x.com" {
		t.Fatalf("expected new login notification, got %+v", res.Notification)
	}
	if env.countEvents(t, res.AccountID, audit.TypeSuspiciousActivity) != 1 {
		t.Fatalf("expected suspicious_activity event")
	}
}

type failingAuditLog struct{}

func (failingAuditLog) Append(_ context.Context, ev audit.Event) (audit.Event, error) {
	return ev, audit.ErrStoreUnavailable
}

func (failingAuditLog) Query(context.Context, audit.Query) ([]audit.Event, error) {
	return nil, audit.ErrStoreUnavailable
}

func (failingAuditLog) Count(context.Context, string, audit.Type, time.Time) (int64, error) {
	return 0, audit.ErrStoreUnavailable
}

func TestAuthenticateSurvivesAuditAndDetectorFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)
	env.engine.auditStore = failingAuditLog{}
	env.engine.detector = detector.New(failingAuditLog{}, detector.DefaultConfig())

	res, err := env.engine.Authenticate(context.Background(), "a@x.com", testPassword, desktop)
	if err != nil {
		t.Fatalf("audit and detector failures must not fail login: %v", err)
	}
	if !res.Risk.Degraded || res.Risk.Action != "allow" || res.Notification != nil {
		t.Fatalf("expected degraded allow, got %+v", res.Risk)
	}
	if env.engine.metrics.Value(MetricAuditWriteFailure) == 0 {
		t.Fatalf("expected audit failure metric")
	}
	if env.engine.metrics.Value(MetricDetectorDegraded) != 1 {
		t.Fatalf("expected detector degraded metric")
	}
}

func TestAuthenticateUpgradesLegacyHash(t *testing.T) {
	env := newTestEnv(t, nil)
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := env.store.Create(context.Background(), Account{ID: "legacy", Email: "old@x.com", PasswordHash: string(legacy), Role: RoleViewer}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := env.engine.Authenticate(context.Background(), "old@x.com", testPassword, desktop); err != nil {
		t.Fatalf("legacy login: %v", err)
	}
	if !strings.HasPrefix(env.store.hash("legacy"), "$argon2id$") {
		t.Fatalf("expected upgraded hash, got %q", env.store.hash("legacy"))
	}
	if _, err := env.engine.Authenticate(context.Background(), "old@x.com", testPassword, desktop); err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
}

func TestAuthenticateForwardsAuditEventsToSink(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEnv(t, func(c *Config) { c.Audit.Enabled = true }, func(b *Builder) { b.WithAuditSink(sink) })
	env.seed(t, "a@x.com", testPassword, RoleViewer)

	_, _ = env.engine.Authenticate(context.Background(), "a@x.com", "wrong", desktop)
	env.engine.Close()

	select {
	case ev := <-sink.Events():
		if ev.Type != AuditLoginFailed || ev.ID == "" || ev.Email != "a@x.com" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("expected a forwarded event")
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatalf("no events should be dropped")
	}
}

func TestAuditEventsQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := env.seed(t, "a@x.com", testPassword, RoleViewer)
	_, _ = env.engine.Authenticate(context.Background(), "a@x.com", "wrong", desktop)

	events, err := env.engine.AuditEvents(context.Background(), AuditQuery{AccountID: acct.ID, Type: AuditLoginFailed})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].IP != desktop.IP {
		t.Fatalf("unexpected events: %+v", events)
	}

	if _, err := env.engine.AuditEvents(context.Background(), AuditQuery{AccountID: acct.ID}); err == nil {
		t.Fatalf("account query without type should fail")
	}
}

func TestAuthenticateLatencyObserved(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Metrics.EnableLatencyHistograms = true })
	env.seed(t, "a@x.com", testPassword, RoleViewer)

	_, _ = env.engine.Authenticate(context.Background(), "a@x.com", testPassword, desktop)

	var total uint64
	for _, n := range env.engine.MetricsSnapshot().Histograms[MetricLoginLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Authenticate(context.Background(), "a@x.com", "pw", desktop); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if len(e.MetricsSnapshot().Counters) != 0 || e.AuditDropped() != 0 {
		t.Fatalf("nil engine should report nothing")
	}
	e.Close()
}
