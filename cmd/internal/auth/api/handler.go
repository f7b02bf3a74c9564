package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"unet/cmd/internal/auth/account"
)

// AuthService is the account workflow the handler drives.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string, meta account.RequestMeta) (account.AuthResult, error)
	Register(ctx context.Context, username, password string) (account.RegisterResult, error)
	Revoke(ctx context.Context, deviceToken string) error
	ChangePassword(ctx context.Context, deviceToken, newPassword string) (account.ChangePasswordResult, error)
}

var _ AuthService = (*account.Service)(nil)

// Handler wires the /unet/user endpoints to the account service.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     AuthService
	metrics *Metrics
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records per-operation counters and latency.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, svc AuthService, opts ...HandlerOption) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("authapi: nil service")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{log: log, cfg: cfg, svc: svc}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/unet/user/get", h.handleGet)
	mux.HandleFunc("/unet/user/create", h.handleCreate)
	mux.HandleFunc("/unet/user/destroy", h.handleDestroy)
	mux.HandleFunc("/unet/user/update", h.handleUpdate)
}

// ---- handlers ----

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	start := time.Now()

	var req credentialsRequest
	if err := decodeRequest(w, r, h.cfg.maxBodyBytes(), &req); err != nil {
		h.metrics.observe("get", "bad_request", start)
		writeJSON(w, http.StatusBadRequest, getResponse{Warning: true, Msg: msgBadRequest})
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	ua := userAgentOf(r)

	res, err := h.svc.Authenticate(r.Context(), req.Username, req.Password, account.RequestMeta{IP: ip, UserAgent: ua})
	outcome := outcomeOf(err)
	h.metrics.observe("get", outcome, start)

	switch {
	case err == nil:
		h.auditLoginSuccess(r.Context(), res.Account.ID, res.DeviceID, ip, ua)
		writeJSON(w, http.StatusOK, getResponse{
			Msg:    msgLoggedIn,
			Exists: boolPtr(true),
			Token:  strPtr(res.Token),
			User:   toUserView(res.Account),
		})
	case errors.Is(err, account.ErrInvalidCredentials):
		h.auditLoginFailed(r.Context(), req.Username, ip, ua, outcome)
		writeJSON(w, http.StatusOK, getResponse{Warning: true, Msg: msgInvalidCredentials})
	default:
		h.logInternal(r, "auth.login.error", err)
		writeJSON(w, http.StatusInternalServerError, getResponse{Err: true, Msg: msgInternal})
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	start := time.Now()

	var req credentialsRequest
	if err := decodeRequest(w, r, h.cfg.maxBodyBytes(), &req); err != nil {
		h.metrics.observe("create", "bad_request", start)
		writeJSON(w, http.StatusBadRequest, createResponse{Warning: true, Msg: msgBadRequest})
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	ua := userAgentOf(r)

	res, err := h.svc.Register(r.Context(), req.Username, req.Password)
	outcome := outcomeOf(err)
	h.metrics.observe("create", outcome, start)

	switch {
	case err == nil:
		h.auditRegister(r.Context(), res.Username, res.ID, ip, ua, outcome)
		writeJSON(w, http.StatusOK, createResponse{
			Msg:      msgCreated,
			Exists:   boolPtr(false),
			Username: strPtr(res.Username),
			ID:       strPtr(res.ID),
		})
	case errors.Is(err, account.ErrValidation):
		h.auditRegister(r.Context(), req.Username, "", ip, ua, outcome)
		writeJSON(w, http.StatusOK, createResponse{Warning: true, Msg: validationMessage(err)})
	case errors.Is(err, account.ErrAlreadyExists):
		h.auditRegister(r.Context(), req.Username, "", ip, ua, outcome)
		writeJSON(w, http.StatusOK, createResponse{Warning: true, Msg: msgUserExists, Exists: boolPtr(true)})
	default:
		h.logInternal(r, "auth.register.error", err)
		writeJSON(w, http.StatusInternalServerError, createResponse{Err: true, Msg: msgInternal})
	}
}

func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	start := time.Now()

	var req destroyRequest
	if err := decodeRequest(w, r, h.cfg.maxBodyBytes(), &req); err != nil {
		h.metrics.observe("destroy", "bad_request", start)
		writeJSON(w, http.StatusBadRequest, deviceResponse{Warning: true, Msg: msgBadRequest})
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	ua := userAgentOf(r)

	err := h.svc.Revoke(r.Context(), req.Token)
	outcome := outcomeOf(err)
	h.metrics.observe("destroy", outcome, start)

	switch {
	case err == nil:
		h.auditRevoke(r.Context(), ip, ua, outcome)
		writeJSON(w, http.StatusOK, deviceResponse{Msg: msgDeleted, Exists: boolPtr(false)})
	case errors.Is(err, account.ErrUnauthorized):
		h.auditRevoke(r.Context(), ip, ua, outcome)
		writeJSON(w, http.StatusOK, deviceResponse{Warning: true, Msg: msgDeviceUnauthorized})
	default:
		h.logInternal(r, "auth.revoke.error", err)
		writeJSON(w, http.StatusInternalServerError, deviceResponse{Err: true, Msg: msgInternal})
	}
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	start := time.Now()

	var req updateRequest
	if err := decodeRequest(w, r, h.cfg.maxBodyBytes(), &req); err != nil {
		h.metrics.observe("update", "bad_request", start)
		writeJSON(w, http.StatusBadRequest, deviceResponse{Warning: true, Msg: msgBadRequest})
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	ua := userAgentOf(r)

	res, err := h.svc.ChangePassword(r.Context(), req.Token, req.Password)
	outcome := outcomeOf(err)
	h.metrics.observe("update", outcome, start)

	switch {
	case err == nil:
		h.auditUpdate(r.Context(), ip, ua, outcome, res.RevokedDevices)
		writeJSON(w, http.StatusOK, deviceResponse{Msg: msgUpdated, Exists: boolPtr(false)})
	case errors.Is(err, account.ErrUnauthorized):
		h.auditUpdate(r.Context(), ip, ua, outcome, 0)
		writeJSON(w, http.StatusOK, deviceResponse{Warning: true, Msg: msgDeviceUnauthorized})
	case errors.Is(err, account.ErrValidation):
		h.auditUpdate(r.Context(), ip, ua, outcome, 0)
		writeJSON(w, http.StatusOK, deviceResponse{Warning: true, Msg: msgPasswordInvalid})
	default:
		h.logInternal(r, "auth.update.error", err)
		writeJSON(w, http.StatusInternalServerError, deviceResponse{Err: true, Msg: msgInternal})
	}
}

func (h *Handler) logInternal(r *http.Request, event string, err error) {
	h.log.ErrorContext(r.Context(), event,
		slog.String("path", r.URL.Path),
		slog.Any("err", err),
	)
}

func allowPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}
