package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/identicore/identity-service/internal/core/domain"
	"github.com/identicore/identity-service/internal/core/ports"
)

// stubUserRepo is an in-memory identity store honouring the repository
// contract: unique emails, tri-state token updates, copies on every return.
type stubUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*domain.User // keyed by ID
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	user := &domain.User{
		ID:             fmt.Sprintf("user-%d", r.nextID),
		Email:          email,
		HashedPassword: hashedPassword,
	}
	r.users[user.ID] = user
	return cloneUser(user), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindBySessionToken(_ context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.SessionToken != nil && *u.SessionToken == token {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByResetToken(_ context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) Update(_ context.Context, id string, update ports.UserUpdate) error {
	if update.IsZero() {
		return domain.ErrNoFields
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if update.HashedPassword != nil {
		u.HashedPassword = update.HashedPassword
	}
	if update.SessionToken != nil {
		if *update.SessionToken == "" {
			u.SessionToken = nil
		} else {
			token := *update.SessionToken
			u.SessionToken = &token
		}
	}
	if update.ResetToken != nil {
		if *update.ResetToken == "" {
			u.ResetToken = nil
		} else {
			token := *update.ResetToken
			u.ResetToken = &token
		}
	}
	return nil
}

func newTestService(repo ports.UserRepository) *AuthService {
	return NewAuthService(repo, NewBcryptHasher(bcrypt.MinCost), nil, zerolog.Nop())
}

func TestAuthService_Register_Success(t *testing.T) {
	svc := newTestService(newStubUserRepo())

	user, err := svc.Register(context.Background(), "alice@example.com", "pass1234")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected store-assigned identifier")
	}
	if user.SessionToken != nil || user.ResetToken != nil {
		t.Fatalf("new record must have null token fields")
	}
	if string(user.HashedPassword) == "pass1234" {
		t.Fatalf("expected password to be hashed")
	}
	if bcrypt.CompareHashAndPassword(user.HashedPassword, []byte("pass1234")) != nil {
		t.Fatalf("stored hash does not match password")
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := newTestService(newStubUserRepo())

	if _, err := svc.Register(context.Background(), "bob@example.com", "pass1234"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob@example.com", "other456"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Register_EmptyInput(t *testing.T) {
	svc := newTestService(newStubUserRepo())

	if _, err := svc.Register(context.Background(), "", "pass1234"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty email, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "x@example.com", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty password, got %v", err)
	}
}

func TestAuthService_VerifyLogin(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "goodpass"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"correct credentials", "carol@example.com", "goodpass", true},
		{"wrong password", "carol@example.com", "badpass", false},
		{"unknown email", "ghost@example.com", "goodpass", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.VerifyLogin(ctx, tt.email, tt.password)
			if err != nil {
				t.Fatalf("VerifyLogin returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("VerifyLogin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthService_CreateAndResolveSession(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dave@example.com", "pass1234"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, err := svc.CreateSession(ctx, "dave@example.com")
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty session token")
	}

	user, err := svc.ResolveSession(ctx, token)
	if err != nil {
		t.Fatalf("ResolveSession returned error: %v", err)
	}
	if user == nil || user.Email != "dave@example.com" {
		t.Fatalf("resolved wrong user: %+v", user)
	}

	if user, err = svc.ResolveSession(ctx, "never-issued-token"); err != nil || user != nil {
		t.Fatalf("unissued token must resolve to nil, got %+v, %v", user, err)
	}
	if user, err = svc.ResolveSession(ctx, ""); err != nil || user != nil {
		t.Fatalf("empty token must resolve to nil, got %+v, %v", user, err)
	}
}

func TestAuthService_CreateSession_UnknownEmail(t *testing.T) {
	svc := newTestService(newStubUserRepo())

	token, err := svc.CreateSession(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if token != "" {
		t.Fatalf("unknown email must yield an empty token, got %q", token)
	}
}

func TestAuthService_SecondLoginInvalidatesFirstSession(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "erin@example.com", "pass1234"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	first, err := svc.CreateSession(ctx, "erin@example.com")
	if err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}
	second, err := svc.CreateSession(ctx, "erin@example.com")
	if err != nil {
		t.Fatalf("second CreateSession failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected a fresh token per login")
	}

	if user, _ := svc.ResolveSession(ctx, first); user != nil {
		t.Fatalf("first token must be invalid after a second login")
	}
	if user, _ := svc.ResolveSession(ctx, second); user == nil || user.Email != "erin@example.com" {
		t.Fatalf("second token must resolve to the user")
	}
}

func TestAuthService_DestroySession(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	registered, err := svc.Register(ctx, "frank@example.com", "pass1234")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	token, err := svc.CreateSession(ctx, "frank@example.com")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := svc.DestroySession(ctx, registered.ID); err != nil {
		t.Fatalf("DestroySession returned error: %v", err)
	}
	if user, _ := svc.ResolveSession(ctx, token); user != nil {
		t.Fatalf("token must not resolve after DestroySession")
	}

	// Idempotent: destroying an already-logged-out user and an unknown
	// identifier are both no-ops.
	if err := svc.DestroySession(ctx, registered.ID); err != nil {
		t.Fatalf("repeat DestroySession returned error: %v", err)
	}
	if err := svc.DestroySession(ctx, "no-such-user"); err != nil {
		t.Fatalf("DestroySession on unknown id returned error: %v", err)
	}
}

func TestAuthService_ResetTokenFlow(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "grace@example.com", "oldpass1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, err := svc.IssueResetToken(ctx, "grace@example.com")
	if err != nil {
		t.Fatalf("IssueResetToken returned error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty reset token")
	}

	if err := svc.RedeemResetToken(ctx, token, "newpass2"); err != nil {
		t.Fatalf("RedeemResetToken returned error: %v", err)
	}

	if ok, _ := svc.VerifyLogin(ctx, "grace@example.com", "newpass2"); !ok {
		t.Fatalf("new password must verify after redemption")
	}
	if ok, _ := svc.VerifyLogin(ctx, "grace@example.com", "oldpass1"); ok {
		t.Fatalf("old password must no longer verify")
	}

	// Single-use: a second redemption of the same token must fail.
	if err := svc.RedeemResetToken(ctx, token, "thirdpass"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken on reuse, got %v", err)
	}
}

func TestAuthService_IssueResetToken_UnknownEmail(t *testing.T) {
	svc := newTestService(newStubUserRepo())

	if _, err := svc.IssueResetToken(context.Background(), "ghost@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_ReissueReplacesResetToken(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "heidi@example.com", "pass1234"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	first, err := svc.IssueResetToken(ctx, "heidi@example.com")
	if err != nil {
		t.Fatalf("first IssueResetToken failed: %v", err)
	}
	second, err := svc.IssueResetToken(ctx, "heidi@example.com")
	if err != nil {
		t.Fatalf("second IssueResetToken failed: %v", err)
	}

	if err := svc.RedeemResetToken(ctx, first, "newpass99"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("superseded token must be invalid, got %v", err)
	}
	if err := svc.RedeemResetToken(ctx, second, "newpass99"); err != nil {
		t.Fatalf("most recent token must redeem: %v", err)
	}
}

func TestAuthService_RedeemResetToken_InvalidInput(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if err := svc.RedeemResetToken(ctx, "", "newpass12"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for empty token, got %v", err)
	}
	if err := svc.RedeemResetToken(ctx, "some-token", ""); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for empty password, got %v", err)
	}
	if err := svc.RedeemResetToken(ctx, "never-issued", "newpass12"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for unknown token, got %v", err)
	}
}

// stubTracker simulates the Redis-backed reset-token TTL store.
type stubTracker struct {
	live map[string]bool
}

func (t *stubTracker) Mark(_ context.Context, token string) error {
	t.live[token] = true
	return nil
}

func (t *stubTracker) IsLive(_ context.Context, token string) (bool, error) {
	return t.live[token], nil
}

func TestAuthService_ExpiredResetTokenRejected(t *testing.T) {
	repo := newStubUserRepo()
	tracker := &stubTracker{live: make(map[string]bool)}
	svc := NewAuthService(repo, NewBcryptHasher(bcrypt.MinCost), tracker, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ivan@example.com", "pass1234"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	token, err := svc.IssueResetToken(ctx, "ivan@example.com")
	if err != nil {
		t.Fatalf("IssueResetToken failed: %v", err)
	}

	// Simulate TTL lapse.
	tracker.live[token] = false

	if err := svc.RedeemResetToken(ctx, token, "newpass12"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for expired token, got %v", err)
	}
}

// full lifecycle: register, login, session replacement, password reset.
func TestAuthService_EndToEnd(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@x.com", "p1-abcde"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ok, _ := svc.VerifyLogin(ctx, "a@x.com", "p1-abcde"); !ok {
		t.Fatalf("login with original password must succeed")
	}

	t1, err := svc.CreateSession(ctx, "a@x.com")
	if err != nil || t1 == "" {
		t.Fatalf("first session: %q, %v", t1, err)
	}
	if u, _ := svc.ResolveSession(ctx, t1); u == nil || u.Email != "a@x.com" {
		t.Fatalf("t1 must resolve to a@x.com")
	}

	t2, err := svc.CreateSession(ctx, "a@x.com")
	if err != nil || t2 == "" {
		t.Fatalf("second session: %q, %v", t2, err)
	}
	if u, _ := svc.ResolveSession(ctx, t1); u != nil {
		t.Fatalf("t1 must be invalid after second login")
	}
	if u, _ := svc.ResolveSession(ctx, t2); u == nil || u.Email != "a@x.com" {
		t.Fatalf("t2 must resolve to a@x.com")
	}

	rt, err := svc.IssueResetToken(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("issue reset token: %v", err)
	}
	if err := svc.RedeemResetToken(ctx, rt, "p2-fghij"); err != nil {
		t.Fatalf("redeem reset token: %v", err)
	}

	if ok, _ := svc.VerifyLogin(ctx, "a@x.com", "p1-abcde"); ok {
		t.Fatalf("old password must be rejected after reset")
	}
	if ok, _ := svc.VerifyLogin(ctx, "a@x.com", "p2-fghij"); !ok {
		t.Fatalf("new password must verify after reset")
	}
}

func TestAuthService_ConcurrentRegister(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "race@example.com", "pass1234")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrUserExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", successes, conflicts)
	}
}
