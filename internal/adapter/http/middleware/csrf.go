package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"mime"
	"net/http"
	"strings"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFFormField  = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfMaxAge     = 86400
	csrfRandomSize = 32
)

// CSRF guards cookie-authenticated form posts with a signed double-submit
// token. Bearer-authenticated and JSON requests are not subject to it: a
// cross-site form can send neither without a CORS preflight.
type CSRF struct {
	secretKey []byte
}

type csrfTokenKey struct{}

func NewCSRF(secretKey string) *CSRF {
	return &CSRF{secretKey: []byte(secretKey)}
}

func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(CSRFCookieName); err != nil || !c.Valid(cookie.Value) {
			token := c.NewToken()
			c.setCookie(w, r, token)
			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))
		}

		if isSafeMethod(r.Method) || isJSON(r) || strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		if !c.validRequest(r) {
			http.Error(w, "Forbidden - Invalid CSRF token", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Token returns the token to render into a form: the one Protect just issued,
// the one the client holds, or a fresh one.
func (c *CSRF) Token(r *http.Request) string {
	if token, ok := r.Context().Value(csrfTokenKey{}).(string); ok {
		return token
	}
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && c.Valid(cookie.Value) {
		return cookie.Value
	}
	return c.NewToken()
}

// NewToken is base64(32 random bytes || HMAC-SHA256 of them).
func (c *CSRF) NewToken() string {
	token := make([]byte, csrfRandomSize, csrfRandomSize+sha256.Size)
	_, _ = rand.Read(token)
	token = append(token, c.sign(token)...)
	return base64.URLEncoding.EncodeToString(token)
}

func (c *CSRF) Valid(token string) bool {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(decoded) != csrfRandomSize+sha256.Size {
		return false
	}
	return hmac.Equal(decoded[csrfRandomSize:], c.sign(decoded[:csrfRandomSize]))
}

func (c *CSRF) sign(b []byte) []byte {
	mac := hmac.New(sha256.New, c.secretKey)
	mac.Write(b)
	return mac.Sum(nil)
}

func (c *CSRF) validRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil {
		return false
	}

	requestToken := r.Header.Get(csrfHeaderName)
	if requestToken == "" {
		requestToken = r.FormValue(CSRFFormField)
	}
	if requestToken == "" {
		return false
	}

	if !hmac.Equal([]byte(requestToken), []byte(cookie.Value)) {
		return false
	}
	return c.Valid(requestToken)
}

func (c *CSRF) setCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/admin",
		MaxAge:   csrfMaxAge,
		Secure:   IsTLS(r),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
