package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yxm4nsy/pay2win-backend/internal/middleware"
	"github.com/yxm4nsy/pay2win-backend/internal/model"
)

type registerRequest struct {
	UTORid   string `json:"utorid" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=20"`
}

// Register регистрирует нового пользователя; доступно кассиру и выше.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req registerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	u, err := h.service.RegisterUser(r.Context(), role, req.UTORid, req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(w, err, "register user error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// GetUser возвращает пользователя по utorid.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "utorid"))
	if err != nil {
		h.respondError(w, err, "get user error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetMe возвращает профиль текущего пользователя.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.respondError(w, err, "get profile error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateMe изменяет имя и почту текущего пользователя.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		h.respondError(w, err, "update profile error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

type updateUserRequest struct {
	Role       *string `json:"role"`
	Verified   *bool   `json:"verified"`
	Suspicious *bool   `json:"suspicious"`
}

// UpdateUser меняет роль, верификацию или флаг подозрительности
// пользователя; доступно менеджеру и выше.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req updateUserRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	if req.Role == nil && req.Verified == nil && req.Suspicious == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	utorid := chi.URLParam(r, "utorid")

	var u *model.User
	var err error

	if req.Role != nil {
		newRole := model.Role(*req.Role)
		if !newRole.Valid() {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if u, err = h.service.SetUserRole(r.Context(), role, utorid, newRole); err != nil {
			h.respondError(w, err, "set role error")
			return
		}
	}

	if req.Verified != nil {
		if !*req.Verified {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if u, err = h.service.SetUserVerified(r.Context(), role, utorid); err != nil {
			h.respondError(w, err, "set verified error")
			return
		}
	}

	if req.Suspicious != nil {
		if u, err = h.service.SetUserSuspicious(r.Context(), role, utorid, *req.Suspicious); err != nil {
			h.respondError(w, err, "set suspicious error")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}
