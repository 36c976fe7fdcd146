package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"telechat/internal/entity"
	"telechat/internal/usecase"
)

type AuthHandler struct {
	authUc usecase.AuthUsecase
	log    *zap.Logger
}

func NewAuthHandler(authUc usecase.AuthUsecase, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authUc: authUc, log: log}
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "username and password are required"})
		return
	}
	if len(req.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, Response{Message: "password must be at least 6 characters"})
		return
	}

	resp, err := h.authUc.Register(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal server error"
		switch {
		case errors.Is(err, usecase.ErrUsernameTaken):
			status, message = http.StatusConflict, "username already taken"
		case errors.Is(err, usecase.ErrPasswordMismatch):
			status, message = http.StatusBadRequest, "passwords do not match"
		default:
			h.log.Error("register failed", zap.Error(err))
		}
		writeJSON(w, status, Response{Message: message})
		return
	}

	writeJSON(w, http.StatusCreated, Response{Message: "registration successful", Data: resp})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "username and password are required"})
		return
	}

	resp, err := h.authUc.Login(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal server error"
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			status, message = http.StatusUnauthorized, "invalid username or password"
		case errors.Is(err, usecase.ErrAccountDisabled):
			status, message = http.StatusForbidden, "account is disabled"
		default:
			h.log.Error("login failed", zap.Error(err))
		}
		writeJSON(w, status, Response{Message: message})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "login successful", Data: resp})
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req entity.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "refresh token is required"})
		return
	}

	resp, err := h.authUc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if !errors.Is(err, usecase.ErrInvalidRefreshToken) {
			h.log.Error("refresh failed", zap.Error(err))
		}
		writeJSON(w, http.StatusUnauthorized, Response{Message: "invalid or expired refresh token"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "token refreshed", Data: resp})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}

	if err := h.authUc.Logout(r.Context(), claims.UserId); err != nil {
		h.log.Error("logout failed", zap.Int64("userId", claims.UserId), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "logout successful"})
}
