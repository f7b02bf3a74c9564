package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store over a modernc.org/sqlite database.
//
// Times are stored as RFC 3339 text in UTC. The *sql.DB is owned by the
// caller when passed to NewSQLiteStore.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path and applies
// connection pragmas. Use ":memory:" for an ephemeral database.
// The pool is pinned to a single connection so pragmas and in-memory
// databases are shared by every query.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("identity: empty sqlite path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o750); err != nil {
				return nil, fmt.Errorf("identity: sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("identity: %s: %w", pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteStore wraps an open database. Run MigrateSQLite first.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

// Ping checks database reachability.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteAccountCols = `id, username, password_hash, created_at, updated_at`

// FindAccountByUsername looks up an account by exact username.
func (s *SQLiteStore) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	const op = "identity.FindAccountByUsername"

	if username == "" {
		return Account{}, invalid(op, "missing username")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAccountCols+` FROM accounts WHERE username = ?`, username)
	return sqliteScanAccount(op, row)
}

// FindAccountByID looks up an account by id.
func (s *SQLiteStore) FindAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindAccountByID"

	if !ValidID(id) {
		return Account{}, invalid(op, "missing or malformed id")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAccountCols+` FROM accounts WHERE id = ?`, id)
	return sqliteScanAccount(op, row)
}

func sqliteScanAccount(op string, row *sql.Row) (Account, error) {
	var (
		a                    Account
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	var err error
	if a.CreatedAt, err = sqliteParseTime(createdAt); err != nil {
		return Account{}, fmt.Errorf("%s: created_at: %w", op, err)
	}
	if a.UpdatedAt, err = sqliteParseTime(updatedAt); err != nil {
		return Account{}, fmt.Errorf("%s: updated_at: %w", op, err)
	}
	return a, nil
}

// CreateAccount inserts a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

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

	ts := sqliteFormatTime(now)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, in.Username, in.PasswordHash, ts, ts,
	)
	if err != nil {
		if field, ok := sqliteClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return Account{
		ID:           id,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if !ValidID(id) || strings.TrimSpace(passwordHash) == "" {
		return invalid(op, "missing or malformed id, or missing password hash")
	}
	if now.IsZero() {
		now = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, sqliteFormatTime(now.UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

// DeleteAccount removes the account's devices and then the account in one transaction.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	const op = "identity.DeleteAccount"

	if !ValidID(id) {
		return invalid(op, "missing or malformed id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE owner_id = ?`, id); err != nil {
		return fmt.Errorf("%s: devices: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: account: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows: %w", op, err)
	}
	if n == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// FindDeviceByToken returns the active device whose token hash matches token.
func (s *SQLiteStore) FindDeviceByToken(ctx context.Context, token string, now time.Time) (Device, error) {
	const op = "identity.FindDeviceByToken"

	if token == "" {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		d         Device
		ipText    sql.NullString
		userAgent sql.NullString
		createdAt string
		expiresAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, token_hash, ip, user_agent, created_at, expires_at
		   FROM devices WHERE token_hash = ?`,
		HashDeviceTokenHex(token),
	).Scan(&d.ID, &d.OwnerID, &d.TokenHash, &ipText, &userAgent, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Device{}, NotFoundError{Op: op, Resource: "device"}
		}
		return Device{}, fmt.Errorf("%s: %w", op, err)
	}

	if ipText.Valid {
		d.IP = parseIPPtr(&ipText.String)
	}
	if userAgent.Valid {
		ua := userAgent.String
		d.UserAgent = &ua
	}
	if d.CreatedAt, err = sqliteParseTime(createdAt); err != nil {
		return Device{}, fmt.Errorf("%s: created_at: %w", op, err)
	}
	if expiresAt.Valid {
		t, err := sqliteParseTime(expiresAt.String)
		if err != nil {
			return Device{}, fmt.Errorf("%s: expires_at: %w", op, err)
		}
		d.ExpiresAt = &t
	}

	if !d.Active(now) {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	return d, nil
}

// CreateDevice persists a device keyed by the hash of in.Token.
func (s *SQLiteStore) CreateDevice(ctx context.Context, in CreateDeviceInput) (Device, error) {
	const op = "identity.CreateDevice"

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

	var ipVal, uaVal, expVal any
	if d.IP != nil {
		ipVal = d.IP.String()
	}
	if d.UserAgent != nil {
		uaVal = *d.UserAgent
	}
	if d.ExpiresAt != nil {
		expVal = sqliteFormatTime(*d.ExpiresAt)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO devices (id, owner_id, token_hash, ip, user_agent, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.TokenHash, ipVal, uaVal, sqliteFormatTime(now), expVal,
	)
	if err != nil {
		if field, ok := sqliteClassifyUniqueViolation(err); ok {
			return Device{}, ConflictError{Op: op, Field: field}
		}
		if sqliteIsForeignKeyViolation(err) {
			return Device{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Device{}, fmt.Errorf("%s: %w", op, err)
	}

	return d, nil
}

// DeleteDevicesByOwner removes the owner's devices, keeping keepID when set.
func (s *SQLiteStore) DeleteDevicesByOwner(ctx context.Context, ownerID, keepID string) (int64, error) {
	const op = "identity.DeleteDevicesByOwner"

	if ownerID == "" {
		return 0, invalid(op, "missing owner_id")
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM devices WHERE owner_id = ? AND (? = '' OR id <> ?)`,
		ownerID, keepID, keepID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

// ---- helpers ----

func sqliteFormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func sqliteParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func sqliteErrCode(err error) (int, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code(), true
}

func sqliteIsForeignKeyViolation(err error) bool {
	if code, ok := sqliteErrCode(err); ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func sqliteClassifyUniqueViolation(err error) (field string, ok bool) {
	code, isSQLite := sqliteErrCode(err)
	switch {
	case isSQLite && (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY):
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
	default:
		return "", false
	}

	// modernc reports "UNIQUE constraint failed: <table>.<column>".
	msg := err.Error()
	switch {
	case strings.Contains(msg, "accounts.username"):
		return "username", true
	case strings.Contains(msg, "devices.token_hash"):
		return "device_token", true
	default:
		return "unique", true
	}
}
