package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Сервис доверяет identity из проверенного токена и сам никакой
// регистрацией пользователей не занимается: токены выпускает внешний
// сервис аутентификации.

var gVerifier *Verifier

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(cfg *Config) *Verifier {
	return &Verifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

func InitVerifier(cfg *Config) {
	gVerifier = NewVerifier(cfg)
}

// VerifyToken проверяет bearer-токен запроса и возвращает идентификатор
// пользователя (claim sub)
func VerifyToken(r *http.Request) (string, error) {
	if gVerifier == nil {
		return "", fmt.Errorf("auth verifier is not initialized")
	}
	return gVerifier.VerifyRequest(r)
}

func (v *Verifier) VerifyRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("no authorization header")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}

	return v.VerifyTokenString(token)
}

func (v *Verifier) VerifyTokenString(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", fmt.Errorf("unexpected token issuer: %s", claims.Issuer)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}
