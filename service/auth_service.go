package service

import (
	"errors"
	"loan-desk-api/logger"
	"loan-desk-api/model"
	"loan-desk-api/repository"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers every login failure (unknown username, wrong
// password, inactive account) so responses never reveal which part failed.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService orchestrates login, refresh and logout over the user
// repository and the token lifecycle.
type AuthService struct {
	users  repository.IUserRepository
	tokens *TokenService
}

func NewAuthService(users repository.IUserRepository, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), err
}

func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Login authenticates the credentials and issues a fresh access/refresh pair.
func (s *AuthService) Login(username, password string) (*model.User, string, string, error) {
	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}
	if !user.Active || !s.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, "", "", err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, "", "", err
	}

	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return user, accessToken, refreshToken, nil
}

// Refresh rotates the presented refresh secret and issues a new access
// token. The rotation is single-use: a replayed secret fails here.
func (s *AuthService) Refresh(refreshSecret string) (string, string, error) {
	newSecret, record, err := s.tokens.RotateRefreshToken(refreshSecret)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	user, err := s.users.GetUserByID(record.UserID)
	if err != nil || !user.Active {
		// The subject vanished or was deactivated since the token was
		// issued; burn the replacement as well.
		s.tokens.InvalidateRefreshToken(newSecret)
		return "", "", ErrInvalidToken
	}

	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return "", "", err
	}
	return accessToken, newSecret, nil
}

// Logout invalidates the presented refresh secret. It never fails: an
// unknown or already-invalidated secret is simply a no-op.
func (s *AuthService) Logout(refreshSecret string) {
	if refreshSecret == "" {
		return
	}
	s.tokens.InvalidateRefreshToken(refreshSecret)
}
