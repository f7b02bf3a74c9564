package authapi

import (
	"context"
	"log/slog"
	"net"
	"unicode/utf8"
)

// Audit events go to the structured log. Business rejections are info/warn,
// never error.

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, deviceID string, ip net.IP, ua string) {
	h.audit(ctx, slog.LevelInfo, "auth.login.success", ip, ua,
		slog.String("user_id", userID),
		slog.String("device_id", deviceID),
	)
}

func (h *Handler) auditLoginFailed(ctx context.Context, username string, ip net.IP, ua string, reason string) {
	h.audit(ctx, slog.LevelWarn, "auth.login.failed", ip, ua,
		slog.String("username", truncate(username, maxLoggedUsernameBytes)),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditRegister(ctx context.Context, username, userID string, ip net.IP, ua string, outcome string) {
	h.audit(ctx, slog.LevelInfo, "auth.register."+outcome, ip, ua,
		slog.String("username", truncate(username, maxLoggedUsernameBytes)),
		slog.String("user_id", userID),
	)
}

func (h *Handler) auditRevoke(ctx context.Context, ip net.IP, ua string, outcome string) {
	h.audit(ctx, levelFor(outcome), "auth.revoke."+outcome, ip, ua)
}

func (h *Handler) auditUpdate(ctx context.Context, ip net.IP, ua string, outcome string, revoked int64) {
	h.audit(ctx, levelFor(outcome), "auth.update."+outcome, ip, ua,
		slog.Int64("revoked_devices", revoked),
	)
}

func (h *Handler) audit(ctx context.Context, level slog.Level, event string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	base := make([]slog.Attr, 0, len(attrs)+2)
	if ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	if ua != "" {
		base = append(base, slog.String("user_agent", truncate(ua, maxLoggedUserAgentBytes)))
	}
	h.log.LogAttrs(ctx, level, event, append(base, attrs...)...)
}

func levelFor(outcome string) slog.Level {
	if outcome == "success" {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

const (
	maxLoggedUsernameBytes  = 64
	maxLoggedUserAgentBytes = 256
)

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
