package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - DeleteAccount removes devices and the account in one transaction; the
//   ON DELETE CASCADE foreign key stays as a second line.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is the Postgres schema used when none is configured.
const DefaultSchema = "unet"

// WithSchema sets the Postgres schema used by the store (default "unet").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// Ping checks database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const pgAccountCols = `id, username, password_hash, created_at, updated_at`

// FindAccountByUsername looks up an account by exact username.
func (s *PostgresStore) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	const op = "identity.FindAccountByUsername"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if username == "" {
		return Account{}, invalid(op, "missing username")
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+pgAccountCols+` FROM `+pgIdent(s.schema, "accounts")+` WHERE username = $1`,
		username,
	)
	return pgScanAccount(op, row)
}

// FindAccountByID looks up an account by id.
func (s *PostgresStore) FindAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindAccountByID"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if !ValidID(id) {
		return Account{}, invalid(op, "missing or malformed id")
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+pgAccountCols+` FROM `+pgIdent(s.schema, "accounts")+` WHERE id = $1`,
		id,
	)
	return pgScanAccount(op, row)
}

func pgScanAccount(op string, row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// CreateAccount inserts a new account.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
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
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return Account{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "accounts")+` (
		     id, username, password_hash, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $4)`,
		id, in.Username, in.PasswordHash, now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
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
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(id) || strings.TrimSpace(passwordHash) == "" {
		return invalid(op, "missing or malformed id, or missing password hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "accounts")+`
		    SET password_hash = $2, updated_at = $3
		  WHERE id = $1`,
		id, passwordHash, now,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

// DeleteAccount removes the account's devices and then the account in one transaction.
func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	const op = "identity.DeleteAccount"

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(id) {
		return invalid(op, "missing or malformed id")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM `+pgIdent(s.schema, "devices")+` WHERE owner_id = $1`, id,
	); err != nil {
		return fmt.Errorf("%s: devices: %w", op, err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM `+pgIdent(s.schema, "accounts")+` WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("%s: account: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// FindDeviceByToken returns the active device whose token hash matches token.
func (s *PostgresStore) FindDeviceByToken(ctx context.Context, token string, now time.Time) (Device, error) {
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

	var (
		d      Device
		ipText *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, token_hash, ip::text, user_agent, created_at, expires_at
		   FROM `+pgIdent(s.schema, "devices")+`
		  WHERE token_hash = $1`,
		HashDeviceTokenHex(token),
	).Scan(&d.ID, &d.OwnerID, &d.TokenHash, &ipText, &d.UserAgent, &d.CreatedAt, &d.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, NotFoundError{Op: op, Resource: "device"}
		}
		return Device{}, fmt.Errorf("%s: %w", op, err)
	}

	d.IP = parseIPPtr(ipText)
	d.CreatedAt = d.CreatedAt.UTC()

	if !d.Active(now) {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	return d, nil
}

// CreateDevice persists a device keyed by the hash of in.Token.
func (s *PostgresStore) CreateDevice(ctx context.Context, in CreateDeviceInput) (Device, error) {
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
		now = time.Now().UTC()
	}

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

	var ipVal any
	if d.IP != nil {
		ipVal = d.IP.String()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "devices")+` (
		     id, owner_id, token_hash, ip, user_agent, created_at, expires_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.OwnerID, d.TokenHash, ipVal, d.UserAgent, d.CreatedAt, d.ExpiresAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Device{}, ConflictError{Op: op, Field: field}
		}
		if pgIsForeignKeyViolation(err) {
			return Device{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Device{}, fmt.Errorf("%s: %w", op, err)
	}

	return d, nil
}

// DeleteDevicesByOwner removes the owner's devices, keeping keepID when set.
func (s *PostgresStore) DeleteDevicesByOwner(ctx context.Context, ownerID, keepID string) (int64, error) {
	const op = "identity.DeleteDevicesByOwner"

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if ownerID == "" {
		return 0, invalid(op, "missing owner_id")
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+pgIdent(s.schema, "devices")+`
		  WHERE owner_id = $1 AND ($2 = '' OR id <> $2)`,
		ownerID, keepID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

// ---- helpers ----

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIdent1(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_accounts_username":
		return "username", true
	case "uq_devices_token_hash":
		return "device_token", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "token"):
			return "device_token", true
		default:
			return "unique", true
		}
	}
}

func parseIPPtr(s *string) *net.IP {
	if s == nil {
		return nil
	}
	raw := strings.TrimSpace(*s)
	if raw == "" {
		return nil
	}
	// ip::text renders INET with a prefix length for non-host values.
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return nil
	}
	return &ip
}
