package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("expired token")
	ErrInvalidCreds  = errors.New("invalid credentials")
	ErrAuthDisabled  = errors.New("admin login is not configured")
	ErrWrongPassword = errors.New("wrong password")
)

const (
	adminSubject = "admin"
	tokenTTL     = 7 * 24 * time.Hour
)

// AuthService guards the admin endpoints with a single bcrypt password and
// HMAC-signed tokens of the form timestamp:subject:signature.
type AuthService struct {
	passwordHash string
	secretKey    string
}

func NewAuthService(passwordHash, secretKey string) *AuthService {
	return &AuthService{
		passwordHash: passwordHash,
		secretKey:    secretKey,
	}
}

func (s *AuthService) Enabled() bool {
	return s.passwordHash != "" && s.secretKey != ""
}

func (s *AuthService) ValidatePassword(password string) error {
	if !s.Enabled() {
		return ErrAuthDisabled
	}
	if password == "" {
		return ErrInvalidCreds
	}

	err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password))
	if err != nil {
		return ErrWrongPassword
	}

	return nil
}

func (s *AuthService) GenerateToken() (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	return timestamp + ":" + adminSubject + ":" + s.sign(timestamp, adminSubject), nil
}

func (s *AuthService) ValidateToken(token string) error {
	if !s.Enabled() {
		return ErrAuthDisabled
	}

	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	timestamp, subject, signature := parts[0], parts[1], parts[2]
	if subject != adminSubject {
		return ErrInvalidToken
	}

	expectedSignature := s.sign(timestamp, subject)
	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return ErrInvalidToken
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}

	expirationTime := time.Unix(ts, 0).Add(tokenTTL)
	if time.Now().After(expirationTime) {
		return ErrExpiredToken
	}

	return nil
}

func (s *AuthService) sign(timestamp, subject string) string {
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(timestamp + ":" + subject))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
