package authapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"unet/cmd/internal/auth/account"
)

func toUserView(v account.View) *userView {
	return &userView{
		ID:        v.ID,
		Username:  v.Username,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// outcomeOf maps a service error to a stable metrics/audit label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, account.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, account.ErrValidation):
		return "validation_failed"
	case errors.Is(err, account.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, account.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal_error"
	}
}

func validationMessage(err error) string {
	if account.FieldOf(err) == account.FieldUsername {
		return msgUsernameInvalid
	}
	return msgPasswordInvalid
}

const maxUserAgentBytes = 512

// userAgentOf returns the request's user agent as trimmed, valid UTF-8.
// net/http passes header bytes 0x80-0xFF through unchecked.
func userAgentOf(r *http.Request) string {
	ua := strings.ToValidUTF8(r.UserAgent(), "")
	return strings.TrimSpace(truncate(ua, maxUserAgentBytes))
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
