package handler

import (
	"encoding/json"
	"errors"
	"loan-desk-api/common"
	"loan-desk-api/logger"
	"loan-desk-api/model"
	"loan-desk-api/service"
	"net/http"
	"time"
)

const refreshCookieName = "refresh_token"

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login godoc
// @Summary      Authenticate a user
// @Description  exchanges credentials for an access token and a refresh cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body  model.LoginRequest  true  "credentials"
// @Success      200  {object}  model.LoginResponse
// @Failure      401  {object}  common.AppError
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	user, accessToken, refreshToken, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return common.NewAppError(http.StatusUnauthorized, "Invalid username or password", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not log in", err)
	}

	setRefreshCookie(w, refreshToken)

	logger.Log.WithField("user_id", user.ID).Info("Login successful")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(model.LoginResponse{
		AccessToken: accessToken,
		User:        user.Public(),
	})
	return nil
}

// Refresh godoc
// @Summary      Refresh the access token
// @Description  rotates the refresh cookie and returns a new access token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  model.RefreshResponse
// @Failure      401  {object}  common.AppError
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		clearRefreshCookie(w)
		return common.NewAppError(http.StatusUnauthorized, "Refresh token missing", nil)
	}

	accessToken, newRefreshToken, err := h.service.Refresh(cookie.Value)
	if err != nil {
		clearRefreshCookie(w)
		return common.NewAppError(http.StatusUnauthorized, "Invalid or expired refresh token", nil)
	}

	setRefreshCookie(w, newRefreshToken)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(model.RefreshResponse{AccessToken: accessToken})
	return nil
}

// Logout godoc
// @Summary      Log out
// @Description  invalidates the refresh token and clears the cookie
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		h.service.Logout(cookie.Value)
	}
	clearRefreshCookie(w)

	// Logout always succeeds, even without a cookie.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
	return nil
}

func setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/api/auth",
		MaxAge:   int(service.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
