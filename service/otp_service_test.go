package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-auth/config"
	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testPhone = "+15551234567"

// memoryOTPStore keeps records in a slice and honours the OTPStore contract
type memoryOTPStore struct {
	mu         sync.Mutex
	records    []*entity.OTPRecord
	nextID     int64
	generator  repository.CodeGenerator
	codeLength int
	now        func() time.Time
	creates    int
	findErr    error
}

func newMemoryOTPStore(now func() time.Time) *memoryOTPStore {
	return &memoryOTPStore{
		generator:  NewNumericGenerator(),
		codeLength: DefaultOTPLength,
		now:        now,
	}
}

func (s *memoryOTPStore) CreateForIdentifier(_ context.Context, identifier string, purpose entity.OTPPurpose, ttl time.Duration) (*entity.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, r := range s.records {
		if r.Identifier == identifier && r.Purpose == purpose && r.IsValid(now) {
			r.IsUsed = true
			r.UpdatedAt = now
		}
	}

	code, err := s.generator.Generate(s.codeLength)
	if err != nil {
		return nil, err
	}

	s.nextID++
	s.creates++
	record := &entity.OTPRecord{
		ID:         s.nextID,
		Identifier: identifier,
		Code:       code,
		Purpose:    purpose,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.records = append(s.records, record)

	cp := *record
	return &cp, nil
}

func (s *memoryOTPStore) FindValid(_ context.Context, identifier string, purpose entity.OTPPurpose) (*entity.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}

	now := s.now()
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.Identifier == identifier && r.Purpose == purpose && r.IsValid(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryOTPStore) MarkVerified(_ context.Context, record *entity.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.byID(record.ID)
	if stored == nil || stored.IsUsed || stored.VerifiedAt != nil {
		return repository.ErrOTPAlreadyUsed
	}

	now := s.now()
	stored.IsUsed = true
	stored.VerifiedAt = &now
	record.IsUsed = true
	record.VerifiedAt = &now
	return nil
}

func (s *memoryOTPStore) IncrementAttempts(_ context.Context, record *entity.OTPRecord, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.byID(record.ID)
	if stored == nil || stored.IsUsed || stored.VerifiedAt != nil {
		return repository.ErrOTPAlreadyUsed
	}
	if limit > 0 && stored.Attempts >= limit {
		record.Attempts = stored.Attempts
		return repository.ErrOTPAttemptsExhausted
	}
	stored.Attempts++
	record.Attempts = stored.Attempts
	return nil
}

func (s *memoryOTPStore) byID(id int64) *entity.OTPRecord {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// get returns a snapshot of the stored record
func (s *memoryOTPStore) get(t *testing.T, id int64) *entity.OTPRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.byID(id)
	require.NotNil(t, r)
	cp := *r
	return &cp
}

// gatedOTPStore holds every FindValid caller until all of them have read the record
type gatedOTPStore struct {
	*memoryOTPStore
	arrived sync.WaitGroup
	release chan struct{}
}

func newGatedOTPStore(store *memoryOTPStore, callers int) *gatedOTPStore {
	g := &gatedOTPStore{memoryOTPStore: store, release: make(chan struct{})}
	g.arrived.Add(callers)
	return g
}

func (g *gatedOTPStore) FindValid(ctx context.Context, identifier string, purpose entity.OTPPurpose) (*entity.OTPRecord, error) {
	record, err := g.memoryOTPStore.FindValid(ctx, identifier, purpose)
	select {
	case <-g.release:
		return record, err
	default:
	}
	g.arrived.Done()
	<-g.release
	return record, err
}

func (g *gatedOTPStore) open() {
	g.arrived.Wait()
	close(g.release)
}

func testConfig() *config.Config {
	return &config.Config{
		OTP: config.OTP{
			Length:         6,
			ExpirationTime: 10 * time.Minute,
			MaxAttempts:    5,
		},
		RateLimit: config.RateLimit{
			Enabled:        true,
			MaxRequests:    3,
			WindowDuration: 10 * time.Minute,
		},
		JWT: config.JWT{
			Secret:         "test-secret",
			Issuer:         "clinic-auth-test",
			ExpirationTime: time.Hour,
		},
	}
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestOTPService_GenerateThenVerifyOnce(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 10*time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)

	outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, VerifyVerified, outcome.Status)
	require.NotNil(t, outcome.Record)
	assert.NotNil(t, outcome.Record.VerifiedAt)
	assert.Equal(t, entity.OTPStateVerified, store.get(t, outcome.Record.ID).State(clock.Now()))

	outcome, err = svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, VerifyNotFound, outcome.Status)
	assert.False(t, outcome.Verified())
}

func TestOTPService_RegenerateSupersedesPrevious(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())
	ctx := context.Background()

	_, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)

	assert.Equal(t, entity.OTPStateSuperseded, store.get(t, 1).State(clock.Now()))
	assert.Equal(t, entity.OTPStateActive, store.get(t, 2).State(clock.Now()))

	outcome, err := svc.Verify(ctx, testPhone, second, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.True(t, outcome.Verified())
	assert.Equal(t, int64(2), outcome.Record.ID)
}

func TestOTPService_PurposesAreIndependent(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())
	ctx := context.Background()

	loginCode, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)
	_, err = svc.Generate(ctx, testPhone, entity.OTPPurposeRegistration, 0)
	require.NoError(t, err)

	assert.Equal(t, entity.OTPStateActive, store.get(t, 1).State(clock.Now()))

	outcome, err := svc.Verify(ctx, testPhone, loginCode, entity.OTPPurposeRegistration)
	require.NoError(t, err)
	assert.NotEqual(t, VerifyVerified, outcome.Status)

	outcome, err = svc.Verify(ctx, testPhone, loginCode, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.True(t, outcome.Verified())
}

func TestOTPService_ExpiredCodeIsNotFound(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, VerifyNotFound, outcome.Status)
	assert.Equal(t, entity.OTPStateExpired, store.get(t, 1).State(clock.Now()))
}

func TestOTPService_MismatchIncrementsAttempts(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)
	wrong := wrongCode(code)

	previous := 0
	for i := 0; i < 3; i++ {
		outcome, err := svc.Verify(ctx, testPhone, wrong, entity.OTPPurposeLogin)
		require.NoError(t, err)
		assert.Equal(t, VerifyMismatch, outcome.Status)
		assert.Nil(t, outcome.Record)

		attempts := store.get(t, 1).Attempts
		assert.Greater(t, attempts, previous)
		previous = attempts
	}
	assert.Equal(t, 3, previous)

	outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.True(t, outcome.Verified())
}

func TestOTPService_TooManyAttempts(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	cfg := testConfig()
	cfg.OTP.MaxAttempts = 2
	svc := NewOTPService(store, nil, cfg, logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		outcome, err := svc.Verify(ctx, testPhone, wrongCode(code), entity.OTPPurposeLogin)
		require.NoError(t, err)
		assert.Equal(t, VerifyMismatch, outcome.Status)
	}

	// Even the right code is refused once the guesses are spent
	outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, VerifyTooManyAttempts, outcome.Status)
	assert.Equal(t, 2, store.get(t, 1).Attempts)
	assert.Equal(t, entity.OTPStateActive, store.get(t, 1).State(clock.Now()))
}

func TestOTPService_ZeroMaxAttemptsDisablesLimit(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	cfg := testConfig()
	cfg.OTP.MaxAttempts = 0
	svc := NewOTPService(store, nil, cfg, logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := svc.Verify(ctx, testPhone, wrongCode(code), entity.OTPPurposeLogin)
		require.NoError(t, err)
	}

	outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.True(t, outcome.Verified())
}

func TestOTPService_ConcurrentVerifySucceedsOnce(t *testing.T) {
	clock := newFixedClock()
	store := newMemoryOTPStore(clock.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan VerifyStatus, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
			assert.NoError(t, err)
			results <- outcome.Status
		}()
	}
	wg.Wait()
	close(results)

	verified := 0
	for status := range results {
		if status == VerifyVerified {
			verified++
		} else {
			assert.Contains(t, []VerifyStatus{VerifyNotFound, VerifyTooManyAttempts}, status)
		}
	}
	assert.Equal(t, 1, verified)
}

func TestOTPService_ConcurrentGuessesRespectMaxAttempts(t *testing.T) {
	clock := newFixedClock()
	const callers = 40
	store := newGatedOTPStore(newMemoryOTPStore(clock.Now), callers)
	cfg := testConfig()
	svc := NewOTPService(store, nil, cfg, logger.NewNop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)
	wrong := wrongCode(code)

	var wg sync.WaitGroup
	results := make(chan VerifyStatus, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.Verify(ctx, testPhone, wrong, entity.OTPPurposeLogin)
			assert.NoError(t, err)
			results <- outcome.Status
		}()
	}
	// Every caller has read the same attempts count before any guess is judged
	store.open()
	wg.Wait()
	close(results)

	counts := make(map[VerifyStatus]int)
	for status := range results {
		counts[status]++
	}
	assert.Equal(t, cfg.OTP.MaxAttempts, counts[VerifyMismatch])
	assert.Equal(t, callers-cfg.OTP.MaxAttempts, counts[VerifyTooManyAttempts])
	assert.Equal(t, cfg.OTP.MaxAttempts, store.get(t, 1).Attempts)

	outcome, err := svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, VerifyTooManyAttempts, outcome.Status)
}

func TestOTPService_StoreErrorPropagates(t *testing.T) {
	store := newMemoryOTPStore(time.Now)
	store.findErr = &repository.StorageError{Op: "find valid otp", Err: errors.New("connection refused")}
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())

	_, err := svc.Verify(context.Background(), testPhone, "123456", entity.OTPPurposeLogin)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrStorage)
}

func TestOTPService_UnknownPurposeRejected(t *testing.T) {
	store := newMemoryOTPStore(time.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.NewNop())

	_, err := svc.Generate(context.Background(), testPhone, entity.OTPPurpose("sms_2fa"), 0)
	assert.Error(t, err)
	assert.Zero(t, store.creates)
}

func TestOTPService_RateLimitBlocksBeforePersisting(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemoryOTPStore(time.Now)
	limiter := repository.NewRedisRateLimitRepository(client, logger.NewNop())
	svc := NewOTPService(store, limiter, testConfig(), logger.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
		require.NoError(t, err)
	}

	_, err = svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, store.creates)

	// Other purposes have their own window
	_, err = svc.Generate(ctx, testPhone, entity.OTPPurposeRegistration, 0)
	assert.NoError(t, err)

	mr.FastForward(11 * time.Minute)
	_, err = svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	assert.NoError(t, err)
}

func TestOTPService_RateLimitDisabled(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	store := newMemoryOTPStore(time.Now)
	svc := NewOTPService(store, repository.NewRedisRateLimitRepository(client, logger.NewNop()), cfg, logger.NewNop())

	for i := 0; i < 5; i++ {
		_, err := svc.Generate(context.Background(), testPhone, entity.OTPPurposeLogin, 0)
		require.NoError(t, err)
	}
	assert.False(t, mr.Exists("rate_limit:otp:login:"+testPhone))
}

func TestOTPService_NeverLogsCode(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := newMemoryOTPStore(time.Now)
	svc := NewOTPService(store, nil, testConfig(), logger.FromZap(zap.New(core)))
	ctx := context.Background()

	code, err := svc.Generate(ctx, testPhone, entity.OTPPurposeLogin, 0)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, testPhone, wrongCode(code), entity.OTPPurposeLogin)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, testPhone, code, entity.OTPPurposeLogin)
	require.NoError(t, err)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, code)
		for key, value := range entry.ContextMap() {
			assert.NotEqual(t, code, value, "field %s carries the code", key)
		}
	}
}

func TestVerifyStatus_String(t *testing.T) {
	assert.Equal(t, "not_found", VerifyNotFound.String())
	assert.Equal(t, "mismatch", VerifyMismatch.String())
	assert.Equal(t, "too_many_attempts", VerifyTooManyAttempts.String())
	assert.Equal(t, "verified", VerifyVerified.String())
	assert.Equal(t, "verify_status(9)", VerifyStatus(9).String())
}

// wrongCode returns a code of the same length that differs from code
func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}
