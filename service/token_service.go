// file: service/token_service.go

package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"loan-desk-api/logger"
	"loan-desk-api/model"
	"loan-desk-api/repository"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	// refreshTokenBytes is the entropy of an opaque refresh secret.
	refreshTokenBytes = 40
)

// ErrInvalidToken is the single outcome for every token failure: bad
// signature, malformed, expired, unknown. Callers must not be able to
// distinguish the reason.
var ErrInvalidToken = errors.New("invalid token")

// TokenService owns the full token lifecycle: short-lived signed access
// tokens and long-lived, rotating, single-use refresh tokens backed by a
// TokenStore.
type TokenService struct {
	store  repository.TokenStore
	jwtKey []byte

	// now is swappable so tests can steer expiry.
	now func() time.Time
}

func NewTokenService(store repository.TokenStore, secretKey string) *TokenService {
	return &TokenService{
		store:  store,
		jwtKey: []byte(secretKey),
		now:    time.Now,
	}
}

// IssueAccessToken signs a self-contained HS256 claim set for an active
// user. Validity is proven later by signature and expiry alone; nothing is
// stored server-side.
func (s *TokenService) IssueAccessToken(user *model.User) (string, error) {
	now := s.now()
	claims := &model.AppClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtKey)
	if err != nil {
		logger.Log.WithError(err).WithField("username", user.Username).Error("Failed to sign access token")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}

	return tokenString, nil
}

// VerifyAccessToken checks signature and expiry. Every failure collapses to
// ErrInvalidToken so the endpoint never acts as a validity oracle.
func (s *TokenService) VerifyAccessToken(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.jwtKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueRefreshToken generates an opaque random secret, stores its record
// keyed by the secret's SHA-256, and returns the secret. A persistence
// failure is logged but never blocks issuance: the record is already live
// in memory.
func (s *TokenService) IssueRefreshToken(user *model.User) (string, error) {
	secret, err := generateSecret()
	if err != nil {
		return "", err
	}

	record := &model.RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: s.now().Add(RefreshTokenTTL),
		CreatedAt: s.now(),
	}

	if err := s.store.Put(hashSecret(secret), record); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).
			Warn("Could not persist refresh token store; token remains valid in memory")
	}
	return secret, nil
}

// ValidateRefreshToken resolves a secret to its record without side effects
// on the happy path, so callers decide separately whether to rotate. An
// expired record is deleted as it is discovered (lazy expiry).
func (s *TokenService) ValidateRefreshToken(secret string) (*model.RefreshTokenRecord, error) {
	key := hashSecret(secret)
	record, ok := s.store.Get(key)
	if !ok {
		return nil, ErrInvalidToken
	}
	if record.Expired(s.now()) {
		if _, err := s.store.Delete(key); err != nil {
			logger.Log.WithError(err).Warn("Could not persist expired-token removal")
		}
		return nil, ErrInvalidToken
	}
	return record, nil
}

// RotateRefreshToken atomically invalidates oldSecret and issues a
// replacement for the same subject. The store's delete reports prior
// existence, so when rotations race on the same secret exactly one claims
// the record; the rest observe it as already invalid.
func (s *TokenService) RotateRefreshToken(oldSecret string) (string, *model.RefreshTokenRecord, error) {
	record, err := s.ValidateRefreshToken(oldSecret)
	if err != nil {
		return "", nil, err
	}

	claimed, err := s.store.Delete(hashSecret(oldSecret))
	if err != nil {
		logger.Log.WithError(err).Warn("Could not persist rotation delete")
	}
	if !claimed {
		// Another rotation won the race.
		return "", nil, ErrInvalidToken
	}

	newSecret, err := generateSecret()
	if err != nil {
		return "", nil, err
	}

	newRecord := &model.RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    record.UserID,
		Username:  record.Username,
		ExpiresAt: s.now().Add(RefreshTokenTTL),
		CreatedAt: s.now(),
	}
	if err := s.store.Put(hashSecret(newSecret), newRecord); err != nil {
		logger.Log.WithError(err).WithField("user_id", record.UserID).
			Warn("Could not persist rotated refresh token; token remains valid in memory")
	}
	return newSecret, newRecord, nil
}

// InvalidateRefreshToken is an idempotent delete; unknown secrets are a no-op.
func (s *TokenService) InvalidateRefreshToken(secret string) {
	if _, err := s.store.Delete(hashSecret(secret)); err != nil {
		logger.Log.WithError(err).Warn("Could not persist refresh token invalidation")
	}
}

// SweepExpired removes every record whose expiry has passed and returns the
// number removed. The scan runs on a snapshot; deletions reacquire the store
// lock briefly per key. A token expiring mid-sweep is caught at next lookup.
func (s *TokenService) SweepExpired() int {
	now := s.now()
	var expired []string
	s.store.Scan(func(key string, record *model.RefreshTokenRecord) {
		if record.Expired(now) {
			expired = append(expired, key)
		}
	})

	removed := 0
	for _, key := range expired {
		existed, err := s.store.Delete(key)
		if err != nil {
			logger.Log.WithError(err).Warn("Could not persist sweep deletion")
		}
		if existed {
			removed++
		}
	}
	if removed > 0 {
		logger.Log.WithField("removed", removed).Info("Swept expired refresh tokens")
	}
	return removed
}

// StartSweeper runs SweepExpired on the given interval until stop is closed.
// The sweep is best-effort hygiene; lazy expiry at lookup is authoritative.
func (s *TokenService) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.SweepExpired()
			case <-stop:
				return
			}
		}
	}()
}

func generateSecret() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
