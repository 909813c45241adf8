/**
 * @description
 * MCP account management: registration, login and profile edits. Passwords are
 * hashed with bcrypt; sessions are stateless HS256 JWTs whose subject is the
 * user id. Registering creates the user and its zero-balance wallet together.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: token issuing and parsing.
 * - golang.org/x/crypto/bcrypt: password hashing.
 */

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var ErrInvalidToken = errors.New("invalid or expired token")

// Tokens issues and verifies session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: "mcp-system", now: time.Now}
}

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for user.
func (t *Tokens) Issue(user *domain.User) (string, error) {
	now := t.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates tokenString and returns the user id in its subject.
func (t *Tokens) Parse(tokenString string) (uuid.UUID, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Session is returned by register and login.
type Session struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type Service struct {
	repo   store.Repository
	ledger *ledger.Ledger
	tokens *Tokens
	log    *zap.SugaredLogger
}

func NewService(l *ledger.Ledger, tokens *Tokens, log *zap.SugaredLogger) *Service {
	return &Service{repo: l.Repo(), ledger: l, tokens: tokens, log: logger.Component(log, "auth")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates an MCP account and its wallet, then signs the user in.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*Session, error) {
	user := &domain.User{
		Name:    strings.TrimSpace(req.Name),
		Email:   normalizeEmail(req.Email),
		Role:    domain.RoleMCP,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}
	if user.Name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return nil, domain.NewValidationError("email", "is not a valid address")
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	err = s.ledger.Within(ctx, func(tx *ledger.Tx) error {
		if err := tx.Repo().CreateUser(ctx, user); err != nil {
			return err
		}
		_, _, err := tx.EnsureWallet(ctx, user.Owner())
		return err
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.log.Infow("mcp registered", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// Login checks credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*Session, error) {
	user, err := s.repo.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req domain.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if user.Name = strings.TrimSpace(*req.Name); user.Name == "" {
			return nil, domain.NewValidationError("name", "is required")
		}
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
