package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrLoginDisabled      = errors.New("admin login is not configured")
)

// AdminScope is the only scope glenhance issues. It gates the mutating
// endpoints such as POST /api/v1/refresh.
const AdminScope = "admin"

const issuer = "glenhance"

type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type Service struct {
	secret   []byte
	duration time.Duration

	adminUser string
	adminHash []byte
}

func NewService(secret string, duration time.Duration) *Service {
	return &Service{
		secret:   []byte(secret),
		duration: duration,
	}
}

// WithAdmin enables Login for a single admin account. hash must be a bcrypt
// hash as produced by HashPassword.
func (s *Service) WithAdmin(user, hash string) *Service {
	s.adminUser = user
	s.adminHash = []byte(hash)
	return s
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login exchanges the configured admin credentials for a token.
func (s *Service) Login(user, password string) (string, error) {
	if s.adminUser == "" || len(s.adminHash) == 0 {
		return "", ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.adminUser)) == 1
	if err := s.CheckPassword(string(s.adminHash), password); err != nil || !userOK {
		return "", ErrInvalidCredentials
	}
	return s.GenerateToken(user)
}

func (s *Service) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: AdminScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
