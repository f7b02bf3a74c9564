// Package password provides password policy checks and password hashing for unet.
//
// New hashes are produced with Argon2id (PHC string format) by default, or
// with bcrypt when configured. Verification accepts both formats so accounts
// created by the legacy bcrypt-based backend keep working; NeedsRehash tells
// callers when a stored hash should be upgraded to the configured scheme.
//
// Security notes:
// - Hash strings are untrusted input during Verify and are decoded strictly.
// - Argon2id verification refuses parameters far above the configured cost.
package password
