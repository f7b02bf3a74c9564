// Package identity implements unet's account and device persistence.
//
// It contains the data model (Account, Device), the store interfaces consumed
// by the auth service, username rules, id and token-hash primitives, and three
// store backends: PostgreSQL (pgx), SQLite (modernc.org/sqlite) and in-memory.
//
// Stores never see plaintext passwords; they persist the hash they are given.
// Device tokens are hashed here before they touch storage.
package identity
