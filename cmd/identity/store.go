package identity

import (
	"context"
	"net"
	"strings"
	"time"
	"unicode/utf8"
)

// Account is unet's registered user identity.
// PasswordHash never leaves the service layer.
type Account struct {
	ID           string
	Username     string
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Device is a login on one client. The server stores only TokenHash;
// the plain token is returned to the client once by CreateDevice.
type Device struct {
	ID        string
	OwnerID   string
	TokenHash string

	IP        *net.IP
	UserAgent *string

	CreatedAt time.Time
	// ExpiresAt is nil for devices that never expire.
	ExpiresAt *time.Time
}

// Active reports whether the device is usable at now.
func (d Device) Active(now time.Time) bool {
	return d.ExpiresAt == nil || d.ExpiresAt.After(now)
}

// CreateAccountInput describes a new account. PasswordHash is already hashed.
type CreateAccountInput struct {
	Username     string
	PasswordHash string
	Now          time.Time
}

// CreateDeviceInput registers a device for an account.
// Token is the plain bearer token; stores persist only its hash.
// TTL <= 0 means the device never expires.
type CreateDeviceInput struct {
	OwnerID   string
	Token     string
	IP        *net.IP
	UserAgent *string
	TTL       time.Duration
	Now       time.Time
}

// AccountStore persists accounts.
type AccountStore interface {
	// FindAccountByUsername returns ErrNotFound when no account matches exactly.
	FindAccountByUsername(ctx context.Context, username string) (Account, error)
	FindAccountByID(ctx context.Context, id string) (Account, error)

	// CreateAccount returns a ConflictError{Field: "username"} on duplicates.
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)

	UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) error

	// DeleteAccount removes all devices owned by id and then the account,
	// atomically. Returns ErrNotFound when the account is already gone.
	DeleteAccount(ctx context.Context, id string) error
}

// DeviceStore persists devices.
type DeviceStore interface {
	// FindDeviceByToken hashes token and returns the matching active device.
	// Unknown and expired tokens both return ErrNotFound.
	FindDeviceByToken(ctx context.Context, token string, now time.Time) (Device, error)

	// CreateDevice returns NotFoundError{Resource: "account"} when OwnerID is unknown.
	CreateDevice(ctx context.Context, in CreateDeviceInput) (Device, error)

	// DeleteDevicesByOwner removes the owner's devices except keepID (if non-empty).
	DeleteDevicesByOwner(ctx context.Context, ownerID, keepID string) (int64, error)
}

// Store is the full persistence boundary used by the auth service.
type Store interface {
	AccountStore
	DeviceStore
}

const maxDeviceTTL = 10 * 365 * 24 * time.Hour

func deviceExpiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	if ttl > maxDeviceTTL {
		ttl = maxDeviceTTL
	}
	t := now.Add(ttl)
	return &t
}

// maxUserAgentBytes caps stored user agents.
const maxUserAgentBytes = 512

// cleanUserAgent returns a storable user agent: valid UTF-8 (TEXT columns
// reject anything else), at most maxUserAgentBytes, nil when empty.
func cleanUserAgent(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.ToValidUTF8(*p, "")
	if len(s) > maxUserAgentBytes {
		cut := maxUserAgentBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return trimPtr(&s)
}

// trimPtr trims a string pointer, returning nil if result is empty.
func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
