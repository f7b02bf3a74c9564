package account

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"unet/cmd/identity"
	"unet/cmd/security/token"
)

// PasswordHasher is the password primitive the service depends on.
// password.Config satisfies it.
type PasswordHasher interface {
	Validate(password string) error
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
	NeedsRehash(encodedHash string) bool
	DummyHash() (string, error)
}

// RequestMeta is client metadata recorded on the device created by Authenticate.
type RequestMeta struct {
	IP        net.IP
	UserAgent string
}

// View is the client-safe projection of an account. It never carries the hash.
type View struct {
	ID        string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthResult is returned by a successful Authenticate.
// Token is the plain device token; it is not retrievable again.
type AuthResult struct {
	Token    string
	DeviceID string
	Account  View
}

// RegisterResult is returned by a successful Register.
type RegisterResult struct {
	ID       string
	Username string
}

// ChangePasswordResult is returned by a successful ChangePassword.
type ChangePasswordResult struct {
	// RevokedDevices counts other devices removed when
	// Config.RevokeDevicesOnPasswordChange is set.
	RevokedDevices int64
}

// Service implements Authenticate, Register, Revoke and ChangePassword.
// It keeps no state between calls beyond what the store persists.
type Service struct {
	cfg    Config
	store  identity.Store
	hasher PasswordHasher
	log    *slog.Logger

	now      func() time.Time
	newToken func(n int) (string, error)

	dummyHash string
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for non-fatal internal events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenSource overrides the device-token generator (tests).
func WithTokenSource(fn func(n int) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.newToken = fn
		}
	}
}

// maxPasswordBytes bounds the work a single Authenticate can cause.
const maxPasswordBytes = 1024

// NewService constructs a Service. It precomputes the dummy hash used to
// equalize the cost of unknown-username logins.
func NewService(cfg Config, store identity.Store, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("account: nil store")
	}
	if hasher == nil {
		return nil, fmt.Errorf("account: nil password hasher")
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = token.DefaultBytes
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		hasher:   hasher,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newToken: token.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	dummy, err := hasher.DummyHash()
	if err != nil {
		return nil, fmt.Errorf("account: dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

// Authenticate verifies username/password and, on success, registers a new
// device and returns its token. Unknown users and wrong passwords produce the
// same ErrInvalidCredentials outcome at the same cost.
func (s *Service) Authenticate(ctx context.Context, username, password string, meta RequestMeta) (AuthResult, error) {
	const op = "account.Authenticate"

	if !identity.ValidUsername(username) || len(password) > maxPasswordBytes {
		s.burnDummyVerify(password)
		return AuthResult{}, fail(op, ErrInvalidCredentials)
	}

	acct, err := s.store.FindAccountByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			s.burnDummyVerify(password)
			return AuthResult{}, fail(op, ErrInvalidCredentials)
		}
		return AuthResult{}, internal(op, err)
	}

	ok, err := s.hasher.Verify(acct.PasswordHash, password)
	if err != nil {
		return AuthResult{}, internal(op, fmt.Errorf("verify stored hash: %w", err))
	}
	if !ok {
		return AuthResult{}, fail(op, ErrInvalidCredentials)
	}

	plain, err := s.newToken(s.cfg.TokenBytes)
	if err != nil {
		return AuthResult{}, internal(op, err)
	}

	now := s.now()
	in := identity.CreateDeviceInput{
		OwnerID: acct.ID,
		Token:   plain,
		TTL:     s.cfg.DeviceTTL,
		Now:     now,
	}
	if meta.IP != nil {
		ip := meta.IP
		in.IP = &ip
	}
	if meta.UserAgent != "" {
		ua := meta.UserAgent
		in.UserAgent = &ua
	}

	dev, err := s.store.CreateDevice(ctx, in)
	if err != nil {
		// The token is never handed out unless its device was persisted.
		return AuthResult{}, internal(op, err)
	}

	s.upgradeHash(ctx, acct, password, now)

	return AuthResult{
		Token:    plain,
		DeviceID: dev.ID,
		Account:  viewOf(acct),
	}, nil
}

// Register validates the input and creates a new account.
func (s *Service) Register(ctx context.Context, username, password string) (RegisterResult, error) {
	const op = "account.Register"

	if err := identity.ValidateUsername(username); err != nil {
		return RegisterResult{}, invalidField(op, FieldUsername, err)
	}
	if err := s.hasher.Validate(password); err != nil {
		return RegisterResult{}, invalidField(op, FieldPassword, err)
	}

	_, err := s.store.FindAccountByUsername(ctx, username)
	switch {
	case err == nil:
		return RegisterResult{}, fail(op, ErrAlreadyExists)
	case !identity.IsNotFound(err):
		return RegisterResult{}, internal(op, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return RegisterResult{}, internal(op, err)
	}

	acct, err := s.store.CreateAccount(ctx, identity.CreateAccountInput{
		Username:     username,
		PasswordHash: hash,
		Now:          s.now(),
	})
	if err != nil {
		// Lost a check-then-create race; the unique index is authoritative.
		if identity.IsConflict(err) && identity.ConflictField(err) == "username" {
			return RegisterResult{}, fail(op, ErrAlreadyExists)
		}
		return RegisterResult{}, internal(op, err)
	}

	return RegisterResult{ID: acct.ID, Username: acct.Username}, nil
}

// Revoke deletes the account owning deviceToken together with all its devices.
func (s *Service) Revoke(ctx context.Context, deviceToken string) error {
	const op = "account.Revoke"

	dev, err := s.authorize(ctx, op, deviceToken)
	if err != nil {
		return err
	}

	if err := s.store.DeleteAccount(ctx, dev.OwnerID); err != nil {
		if identity.IsNotFound(err) {
			// Deleted concurrently by another device of the same account.
			return fail(op, ErrUnauthorized)
		}
		return internal(op, err)
	}
	return nil
}

// ChangePassword replaces the password of the account owning deviceToken.
// Existing device tokens stay valid unless RevokeDevicesOnPasswordChange is set,
// in which case every device except the authorizing one is deleted.
func (s *Service) ChangePassword(ctx context.Context, deviceToken, newPassword string) (ChangePasswordResult, error) {
	const op = "account.ChangePassword"

	dev, err := s.authorize(ctx, op, deviceToken)
	if err != nil {
		return ChangePasswordResult{}, err
	}

	if err := s.hasher.Validate(newPassword); err != nil {
		return ChangePasswordResult{}, invalidField(op, FieldPassword, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return ChangePasswordResult{}, internal(op, err)
	}

	if err := s.store.UpdatePasswordHash(ctx, dev.OwnerID, hash, s.now()); err != nil {
		if identity.IsNotFound(err) {
			return ChangePasswordResult{}, fail(op, ErrUnauthorized)
		}
		return ChangePasswordResult{}, internal(op, err)
	}

	var out ChangePasswordResult
	if s.cfg.RevokeDevicesOnPasswordChange {
		// The new password is already stored; a failed sweep must not report
		// the change as failed. Remaining devices stay valid until revoked.
		n, err := s.store.DeleteDevicesByOwner(ctx, dev.OwnerID, dev.ID)
		if err != nil {
			s.log.ErrorContext(ctx, "auth.update.revoke_devices_failed",
				slog.String("account_id", dev.OwnerID),
				slog.Any("err", err),
			)
			return out, nil
		}
		out.RevokedDevices = n
	}
	return out, nil
}

// authorize resolves deviceToken to an active device.
func (s *Service) authorize(ctx context.Context, op, deviceToken string) (identity.Device, error) {
	if deviceToken == "" || len(deviceToken) > 2*token.MaxBytes {
		return identity.Device{}, fail(op, ErrUnauthorized)
	}

	dev, err := s.store.FindDeviceByToken(ctx, deviceToken, s.now())
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Device{}, fail(op, ErrUnauthorized)
		}
		return identity.Device{}, internal(op, err)
	}
	return dev, nil
}

func (s *Service) burnDummyVerify(password string) {
	if len(password) > maxPasswordBytes {
		password = password[:maxPasswordBytes]
	}
	_, _ = s.hasher.Verify(s.dummyHash, password)
}

// upgradeHash rehashes legacy or weaker hashes after a successful login.
// Failures are logged and never surfaced.
func (s *Service) upgradeHash(ctx context.Context, acct identity.Account, password string, now time.Time) {
	if !s.hasher.NeedsRehash(acct.PasswordHash) {
		return
	}

	// Legacy passwords may predate the current policy; Hash would refuse them.
	if err := s.hasher.Validate(password); err != nil {
		s.log.Info("auth.rehash.skipped", slog.String("account_id", acct.ID), slog.String("reason", "policy"))
		return
	}

	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, acct.ID, hash, now)
	}
	if err != nil {
		s.log.Warn("auth.rehash.failed", slog.String("account_id", acct.ID), slog.Any("err", err))
		return
	}
	s.log.Info("auth.rehash.upgraded", slog.String("account_id", acct.ID))
}

func viewOf(a identity.Account) View {
	return View{
		ID:        a.ID,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
