package handler

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type loginRequest struct {
	UTORid   string `json:"utorid" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Login выполняет аутентификацию и выдаёт bearer-токен. Запросы с одного
// адреса принимаются не чаще одного раза за окно лимитера.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	allowed, err := h.loginLimiter.Allow(r.Context(), clientIP(r))
	if err != nil {
		h.logger.Error("rate limit error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	var req loginRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.UTORid, req.Password)
	if err != nil {
		h.respondError(w, err, "login error")
		return
	}

	token, expiresAt, err := h.authMiddleware.IssueToken(u.ID, u.Role)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.Int64("userID", u.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
