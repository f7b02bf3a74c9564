// Package account implements unet's username/password authentication service.
//
// Service exposes four operations over an identity.Store:
//   - Authenticate verifies credentials and registers a new device token.
//   - Register validates and creates an account.
//   - Revoke deletes the account that owns a device token, with all its devices.
//   - ChangePassword replaces the password of the account that owns a device token.
//
// Outcomes are reported as *Error values whose Kind is one of the sentinel
// kinds in errors.go. Rendering those outcomes for clients is the transport's job.
package account
