/**
 * @description
 * Wallet Authentication Service.
 * Orchestrates nonce issuance, signature verification, registration, login and
 * session token issuance. There are no passwords: proving control of the wallet
 * key over a freshly issued nonce is the only credential.
 *
 * Flow:
 * 1. RequestNonce(address) -> challenge message the wallet signs
 * 2. Register(address, signature, username) or Login(address, signature)
 * 3. On success a stateless HS256 JWT is issued (no revocation support)
 *
 * @dependencies
 * - gorm.io/gorm: user persistence
 * - github.com/golang-jwt/jwt/v5: session tokens
 * - github.com/ethereum/go-ethereum/common: address validation
 * - github.com/jackc/pgconn: Postgres error-code mapping for uniqueness races
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgconn"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/models"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// AuthResult is returned on successful registration or login
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresIn time.Duration
}

// AuthService coordinates the nonce store, signature verifier and user table
type AuthService struct {
	DB        *gorm.DB
	Nonces    *NonceStore
	Verifier  *SignatureVerifier
	JWTSecret []byte
	JWTExpiry time.Duration
}

func NewAuthService(db *gorm.DB, nonces *NonceStore, verifier *SignatureVerifier, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		DB:        db,
		Nonces:    nonces,
		Verifier:  verifier,
		JWTSecret: []byte(jwtSecret),
		JWTExpiry: jwtExpiry,
	}
}

// RequestNonce validates the address and issues a fresh signing challenge.
// It has no side effect on the users table: anyone can request a nonce.
func (s *AuthService) RequestNonce(ctx context.Context, address string) (*NonceChallenge, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: valid Ethereum address required", ErrInvalidInput)
	}
	return s.Nonces.Issue(ctx, strings.ToLower(address))
}

// Register creates a new user after verifying the signed challenge.
// Fails with ErrConflict if the wallet or username is already taken,
// ErrUnauthorized on a bad signature or missing/expired nonce.
func (s *AuthService) Register(ctx context.Context, address, signature, username string) (*AuthResult, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: valid Ethereum address required", ErrInvalidInput)
	}
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-30 characters, letters, numbers and underscore only", ErrInvalidInput)
	}

	normalized := strings.ToLower(address)

	if err := s.verifyChallenge(ctx, normalized, signature); err != nil {
		return nil, err
	}

	// Pre-checks give friendly errors; the unique indexes close the race.
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("address = ?", normalized).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check address: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: wallet already registered", ErrConflict)
	}
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(username)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: username already taken", ErrConflict)
	}

	user := &models.User{
		Address:  normalized,
		Username: username,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: wallet or username already registered", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Info("✅ Wallet registered: %s → %s", normalized, username)
	return s.issueToken(user)
}

// Login verifies the signed challenge and issues a session token.
// Fails with ErrNotFound when the wallet has never registered.
func (s *AuthService) Login(ctx context.Context, address, signature string) (*AuthResult, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: valid Ethereum address required", ErrInvalidInput)
	}

	normalized := strings.ToLower(address)

	if err := s.verifyChallenge(ctx, normalized, signature); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("address = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: address not registered", ErrNotFound)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return s.issueToken(&user)
}

// GetUser loads a user by id
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &user, nil
}

// FindByAddress loads a user by wallet address, ErrNotFound when unregistered
func (s *AuthService) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: valid Ethereum address required", ErrInvalidInput)
	}
	var user models.User
	if err := s.DB.WithContext(ctx).Where("address = ?", strings.ToLower(address)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &user, nil
}

// verifyChallenge consumes the live nonce and verifies the signature against
// the exact message issued with it. Consume is delete-once, so a concurrent
// attempt on the same nonce sees ErrNotFound and fails.
func (s *AuthService) verifyChallenge(ctx context.Context, address, signature string) error {
	challenge, err := s.Nonces.Consume(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: no nonce found, request one first", ErrUnauthorized)
		}
		return err
	}

	if challenge.Expired(time.Now().UTC()) {
		return fmt.Errorf("%w: nonce expired, request a new one", ErrUnauthorized)
	}

	if !s.Verifier.Verify(address, challenge.Message(), signature) {
		return fmt.Errorf("%w: signature verification failed", ErrUnauthorized)
	}

	return nil
}

func (s *AuthService) issueToken(user *models.User) (*AuthResult, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"address":  user.Address,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.JWTExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &AuthResult{
		User:      user,
		Token:     signed,
		ExpiresIn: s.JWTExpiry,
	}, nil
}
