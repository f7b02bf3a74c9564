package identity

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory returns a fresh, empty, migrated store.
type storeFactory func(t *testing.T) Store

// runStoreConformance exercises the Store contract shared by every backend.
func runStoreConformance(t *testing.T, newStore storeFactory) {
	t.Run("CreateAndFindAccount", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "alice_99", PasswordHash: "h1", Now: now})
		require.NoError(t, err)
		assert.Len(t, a.ID, 26)
		assert.Equal(t, "alice_99", a.Username)

		byName, err := s.FindAccountByUsername(ctx, "alice_99")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byName.ID)
		assert.Equal(t, "h1", byName.PasswordHash)
		assert.True(t, byName.CreatedAt.Equal(now))

		byID, err := s.FindAccountByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice_99", byID.Username)
	})

	t.Run("UsernameIsCaseSensitive", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "Alice", PasswordHash: "h"})
		require.NoError(t, err)

		_, err = s.FindAccountByUsername(ctx, "alice")
		assert.True(t, IsNotFound(err), "got %v", err)

		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "alice", PasswordHash: "h"})
		assert.NoError(t, err)
	})

	t.Run("DuplicateUsernameConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "bob", PasswordHash: "h1"})
		require.NoError(t, err)

		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "bob", PasswordHash: "h2"})
		require.Error(t, err)
		assert.True(t, IsConflict(err), "got %v", err)
		assert.Equal(t, "username", ConflictField(err))

		a, err := s.FindAccountByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "h1", a.PasswordHash, "existing account must be unchanged")
	})

	t.Run("CreateAccountRejectsBadInput", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "ab", PasswordHash: "h"})
		assert.True(t, IsInvalidInput(err), "got %v", err)

		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "carol", PasswordHash: " "})
		assert.True(t, IsInvalidInput(err), "got %v", err)
	})

	t.Run("FindMissingAccount", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		_, err := s.FindAccountByUsername(ctx, "nobody")
		assert.True(t, IsNotFound(err), "got %v", err)

		_, err = s.FindAccountByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		assert.True(t, IsNotFound(err), "got %v", err)

		_, err = s.FindAccountByID(ctx, "not-a-ulid")
		assert.True(t, IsInvalidInput(err), "got %v", err)
	})

	t.Run("UpdatePasswordHash", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "dave", PasswordHash: "old"})
		require.NoError(t, err)

		later := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.UpdatePasswordHash(ctx, a.ID, "new", later))

		got, err := s.FindAccountByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
		assert.True(t, got.UpdatedAt.Equal(later))

		err = s.UpdatePasswordHash(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", "x", later)
		assert.True(t, IsNotFound(err), "got %v", err)

		err = s.UpdatePasswordHash(ctx, a.ID, "   ", later)
		assert.True(t, IsInvalidInput(err), "got %v", err)
	})

	t.Run("DeviceLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "erin", PasswordHash: "h"})
		require.NoError(t, err)

		ip := net.ParseIP("203.0.113.7")
		ua := "  unet-test/1.0  "
		tok := strings.Repeat("ab", 256)

		d, err := s.CreateDevice(ctx, CreateDeviceInput{
			OwnerID:   a.ID,
			Token:     tok,
			IP:        &ip,
			UserAgent: &ua,
		})
		require.NoError(t, err)
		assert.Equal(t, HashDeviceTokenHex(tok), d.TokenHash)
		assert.Len(t, d.TokenHash, 64)
		assert.Nil(t, d.ExpiresAt)

		got, err := s.FindDeviceByToken(ctx, tok, time.Now())
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, a.ID, got.OwnerID)
		require.NotNil(t, got.IP)
		assert.Equal(t, "203.0.113.7", got.IP.String())
		require.NotNil(t, got.UserAgent)
		assert.Equal(t, "unet-test/1.0", *got.UserAgent)

		_, err = s.FindDeviceByToken(ctx, tok+"x", time.Now())
		assert.True(t, IsNotFound(err), "got %v", err)

		_, err = s.FindDeviceByToken(ctx, "", time.Now())
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("DeviceUserAgentIsStorable", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "gwen", PasswordHash: "h"})
		require.NoError(t, err)

		bad := "curl\xff/8.0"
		_, err = s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: "tok-bad-ua", UserAgent: &bad})
		require.NoError(t, err)

		got, err := s.FindDeviceByToken(ctx, "tok-bad-ua", time.Now())
		require.NoError(t, err)
		require.NotNil(t, got.UserAgent)
		assert.Equal(t, "curl/8.0", *got.UserAgent)

		long := strings.Repeat("é", 400)
		_, err = s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: "tok-long-ua", UserAgent: &long})
		require.NoError(t, err)

		got, err = s.FindDeviceByToken(ctx, "tok-long-ua", time.Now())
		require.NoError(t, err)
		require.NotNil(t, got.UserAgent)
		assert.LessOrEqual(t, len(*got.UserAgent), 512)
		assert.True(t, utf8.ValidString(*got.UserAgent))
	})

	t.Run("DeviceForUnknownOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		_, err := s.CreateDevice(ctx, CreateDeviceInput{OwnerID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Token: "tok"})
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("DuplicateDeviceTokenConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "frank", PasswordHash: "h"})
		require.NoError(t, err)

		_, err = s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: "same"})
		require.NoError(t, err)

		_, err = s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: "same"})
		assert.True(t, IsConflict(err), "got %v", err)
		assert.Equal(t, "device_token", ConflictField(err))
	})

	t.Run("ExpiredDeviceIsAbsent", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "grace", PasswordHash: "h"})
		require.NoError(t, err)

		now := time.Now().UTC()
		d, err := s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: "ttl-token", TTL: time.Hour, Now: now})
		require.NoError(t, err)
		require.NotNil(t, d.ExpiresAt)

		_, err = s.FindDeviceByToken(ctx, "ttl-token", now.Add(30*time.Minute))
		require.NoError(t, err)

		_, err = s.FindDeviceByToken(ctx, "ttl-token", now.Add(2*time.Hour))
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("DeleteAccountCascadesDevices", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "heidi", PasswordHash: "h"})
		require.NoError(t, err)
		other, err := s.CreateAccount(ctx, CreateAccountInput{Username: "ivan", PasswordHash: "h"})
		require.NoError(t, err)

		for _, tok := range []string{"t1", "t2"} {
			_, err := s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: tok})
			require.NoError(t, err)
		}
		_, err = s.CreateDevice(ctx, CreateDeviceInput{OwnerID: other.ID, Token: "t3"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteAccount(ctx, a.ID))

		_, err = s.FindAccountByUsername(ctx, "heidi")
		assert.True(t, IsNotFound(err), "got %v", err)
		for _, tok := range []string{"t1", "t2"} {
			_, err := s.FindDeviceByToken(ctx, tok, time.Now())
			assert.True(t, IsNotFound(err), "device %s should be gone, got %v", tok, err)
		}
		_, err = s.FindDeviceByToken(ctx, "t3", time.Now())
		assert.NoError(t, err, "other account's device must survive")

		err = s.DeleteAccount(ctx, a.ID)
		assert.True(t, IsNotFound(err), "second delete: got %v", err)

		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "heidi", PasswordHash: "h"})
		assert.NoError(t, err, "username is free again")
	})

	t.Run("DeleteDevicesByOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := testCtx(t)

		a, err := s.CreateAccount(ctx, CreateAccountInput{Username: "judy", PasswordHash: "h"})
		require.NoError(t, err)

		keep, err := s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: "keep"})
		require.NoError(t, err)
		for _, tok := range []string{"drop1", "drop2"} {
			_, err := s.CreateDevice(ctx, CreateDeviceInput{OwnerID: a.ID, Token: tok})
			require.NoError(t, err)
		}

		n, err := s.DeleteDevicesByOwner(ctx, a.ID, keep.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		_, err = s.FindDeviceByToken(ctx, "keep", time.Now())
		assert.NoError(t, err)
		_, err = s.FindDeviceByToken(ctx, "drop1", time.Now())
		assert.True(t, IsNotFound(err))

		n, err = s.DeleteDevicesByOwner(ctx, a.ID, "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)
	return ctx
}
