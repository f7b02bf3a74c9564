package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a dev/test Store with the same contract as the SQL backends.
// A single mutex guards both maps, so DeleteAccount is atomic.
type InMemoryStore struct {
	mu sync.Mutex

	accounts   map[string]Account // id -> account
	byUsername map[string]string  // username -> id
	devices    map[string]Device  // token hash -> device
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:   make(map[string]Account),
		byUsername: make(map[string]string),
		devices:    make(map[string]Device),
	}
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// FindAccountByUsername looks up an account by exact username.
func (s *InMemoryStore) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	const op = "identity.FindAccountByUsername"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if username == "" {
		return Account{}, invalid(op, "missing username")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return s.accounts[id], nil
}

// FindAccountByID looks up an account by id.
func (s *InMemoryStore) FindAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindAccountByID"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if !ValidID(id) {
		return Account{}, invalid(op, "missing or malformed id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return a, nil
}

// CreateAccount inserts a new account.
func (s *InMemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if err := ValidateUsername(in.Username); err != nil {
		return Account{}, invalid(op, "invalid username")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, invalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	id, err := NewULID(now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[in.Username]; exists {
		return Account{}, ConflictError{Op: op, Field: "username"}
	}

	a := Account{
		ID:           id,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.accounts[id] = a
	s.byUsername[in.Username] = id
	return a, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *InMemoryStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(id) || strings.TrimSpace(passwordHash) == "" {
		return invalid(op, "missing or malformed id, or missing password hash")
	}
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = now.UTC()
	s.accounts[id] = a
	return nil
}

// DeleteAccount removes the account and its devices under one lock.
func (s *InMemoryStore) DeleteAccount(ctx context.Context, id string) error {
	const op = "identity.DeleteAccount"

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(id) {
		return invalid(op, "missing or malformed id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	for h, d := range s.devices {
		if d.OwnerID == id {
			delete(s.devices, h)
		}
	}
	delete(s.byUsername, a.Username)
	delete(s.accounts, id)
	return nil
}

// FindDeviceByToken returns the active device whose token hash matches token.
func (s *InMemoryStore) FindDeviceByToken(ctx context.Context, token string, now time.Time) (Device, error) {
	const op = "identity.FindDeviceByToken"

	if err := ctx.Err(); err != nil {
		return Device{}, err
	}
	if token == "" {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash := HashDeviceTokenHex(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[hash]
	if !ok || !d.Active(now) {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	return d, nil
}

// CreateDevice persists a device keyed by the hash of in.Token.
func (s *InMemoryStore) CreateDevice(ctx context.Context, in CreateDeviceInput) (Device, error) {
	const op = "identity.CreateDevice"

	if err := ctx.Err(); err != nil {
		return Device{}, err
	}
	if in.OwnerID == "" {
		return Device{}, invalid(op, "missing owner_id")
	}
	if in.Token == "" {
		return Device{}, invalid(op, "missing token")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	id, err := NewULID(now)
	if err != nil {
		return Device{}, err
	}

	d := Device{
		ID:        id,
		OwnerID:   in.OwnerID,
		TokenHash: HashDeviceTokenHex(in.Token),
		IP:        in.IP,
		UserAgent: cleanUserAgent(in.UserAgent),
		CreatedAt: now,
		ExpiresAt: deviceExpiry(now, in.TTL),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.OwnerID]; !ok {
		return Device{}, NotFoundError{Op: op, Resource: "account"}
	}
	if _, dup := s.devices[d.TokenHash]; dup {
		return Device{}, ConflictError{Op: op, Field: "device_token"}
	}
	s.devices[d.TokenHash] = d
	return d, nil
}

// DeleteDevicesByOwner removes the owner's devices, keeping keepID when set.
func (s *InMemoryStore) DeleteDevicesByOwner(ctx context.Context, ownerID, keepID string) (int64, error) {
	const op = "identity.DeleteDevicesByOwner"

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if ownerID == "" {
		return 0, invalid(op, "missing owner_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, d := range s.devices {
		if d.OwnerID != ownerID || (keepID != "" && d.ID == keepID) {
			continue
		}
		delete(s.devices, h)
		n++
	}
	return n, nil
}
