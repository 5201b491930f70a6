package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/middleware"
)

const maxBodyBytes = 64 << 10

// CodeRequestMalformed is the error code for unreadable request bodies.
const CodeRequestMalformed = "request_malformed"

var errBadRequest = errors.New("malformed request body")

// Engine is the subset of *staffauth.Engine served over HTTP.
type Engine interface {
	middleware.Authenticator
	Login(ctx context.Context, username, password string) (staffauth.CredentialPair, error)
	Rotate(ctx context.Context, token string) (staffauth.CredentialPair, error)
	RevokeAll(ctx context.Context, staffID string) (int, error)
}

// Handler serves the credential endpoints.
type Handler struct {
	engine   Engine
	logger   *zap.Logger
	clientIP middleware.ClientIPFunc
}

// Option configures a Handler.
type Option func(*Handler)

// WithClientIP sets how the caller address is derived, e.g. from
// middleware.TrustedProxies. The default is middleware.ClientIP.
func WithClientIP(f middleware.ClientIPFunc) Option {
	return func(h *Handler) {
		if f != nil {
			h.clientIP = f
		}
	}
}

// NewHandler returns a Handler. A nil logger logs nothing.
func NewHandler(engine Engine, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		engine:   engine,
		logger:   logger.With(zap.String("component", "httpapi")),
		clientIP: middleware.ClientIP,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API:
//
//	POST /auth/token    username+password (JSON or form) -> pair
//	POST /auth/refresh  {"token": refresh} -> pair
//	GET  /auth/me       guarded, returns the identity
//	POST /auth/logout   guarded, revokes every refresh credential of the caller
func (h *Handler) Routes() http.Handler {
	guard := middleware.Guard(h.engine, middleware.WithClientIPFunc(h.clientIP))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", h.token)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.Handle("GET /auth/me", guard(http.HandlerFunc(h.me)))
	mux.Handle("POST /auth/logout", guard(http.HandlerFunc(h.logout)))
	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

type logoutResponse struct {
	Revoked int `json:"revoked"`
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req, func(form func(string) string) {
		req.Username, req.Password = form("username"), form("password")
	}); err != nil {
		h.badRequest(w, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		h.badRequest(w, fmt.Errorf("%w: username and password are required", errBadRequest))
		return
	}

	ctx := staffauth.WithClientIP(r.Context(), h.clientIP(r))
	pair, err := h.engine.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req, func(form func(string) string) {
		req.Token = form("token")
	}); err != nil {
		h.badRequest(w, err)
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		middleware.WriteError(w, staffauth.ErrMissingCredential)
		return
	}

	ctx := staffauth.WithClientIP(r.Context(), h.clientIP(r))
	pair, err := h.engine.Rotate(ctx, token)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ident, _ := staffauth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, ident)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ident, _ := staffauth.IdentityFromContext(r.Context())
	n, err := h.engine.RevokeAll(r.Context(), ident.ID)
	if err != nil {
		h.fail(w, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, logoutResponse{Revoked: n})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status := middleware.HTTPStatus(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.String("op", op), zap.String("code", staffauth.ErrorCode(err)))
	}
	middleware.WriteError(w, err)
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	h.logger.Debug("bad request", zap.Error(err))
	writeJSON(w, http.StatusBadRequest, middleware.ErrorBody{Error: CodeRequestMalformed, Message: err.Error()})
}

// decodeBody reads JSON into dst, or hands form values to fromForm for
// urlencoded and multipart bodies.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, fromForm func(func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		fromForm(r.PostFormValue)
		return nil
	default:
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
