package http

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/reel/internal/adapter/http/middleware"
	"github.com/bnema/reel/internal/adapter/http/ratelimit"
	"github.com/bnema/reel/internal/adapter/http/templates"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/service"
)

const (
	CookieName     = "reel_admin"
	CookieMaxAge   = 7 * 24 * 60 * 60
	CookiePath     = "/admin"
	CookieSameSite = http.SameSiteStrictMode
)

type AuthService interface {
	Enabled() bool
	ValidatePassword(password string) error
	GenerateToken() (string, error)
	ValidateToken(token string) error
}

// AuthMiddleware accepts a bearer token or the admin cookie. Browsers are
// sent to the login page; API clients get a 401.
func AuthMiddleware(authSvc AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, bearer := requestToken(r)
		if token != "" && authSvc.ValidateToken(token) == nil {
			next(w, r)
			return
		}

		if !bearer && wantsHTML(r) {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="reel"`)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}
}

func requestToken(r *http.Request) (token string, bearer bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), true
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value, false
	}
	return "", false
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type LoginDeps struct {
	Auth        AuthService
	Limiter     *ratelimit.LoginRateLimiter
	Failures    *ratelimit.FailureTracker
	Backoff     *ratelimit.Backoff
	CSRF        *middleware.CSRF
	BehindProxy bool
}

func LoginHandler(deps LoginDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonLogin := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

		if r.Method == http.MethodGet {
			renderLogin(w, r, deps.CSRF, "", http.StatusOK)
			return
		}

		if !deps.Auth.Enabled() {
			loginFailed(w, r, deps.CSRF, jsonLogin, http.StatusServiceUnavailable, "admin login is not configured")
			return
		}

		clientID := clientIP(r, deps.BehindProxy)
		if allowed, wait := deps.Limiter.Check(clientID); !allowed {
			logger.Warn.Printf("login rate limited for %s", logger.SanitizeForLog(clientID))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			loginFailed(w, r, deps.CSRF, jsonLogin, http.StatusTooManyRequests, "too many attempts, try again later")
			return
		}

		if failures := deps.Failures.Failures(clientID); failures > 0 {
			delay := deps.Backoff.Duration(failures)
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		password, err := readPassword(w, r, jsonLogin)
		if err != nil {
			loginFailed(w, r, deps.CSRF, jsonLogin, http.StatusBadRequest, "invalid login request")
			return
		}

		if err := deps.Auth.ValidatePassword(password); err != nil {
			n := deps.Failures.RecordFailure(clientID)
			logger.Warn.Printf("failed admin login from %s (%d consecutive)", logger.SanitizeForLog(clientID), n)
			if errors.Is(err, service.ErrWrongPassword) || errors.Is(err, service.ErrInvalidCreds) {
				loginFailed(w, r, deps.CSRF, jsonLogin, http.StatusUnauthorized, "invalid password")
				return
			}
			logger.Error.Printf("login error: %v", err)
			loginFailed(w, r, deps.CSRF, jsonLogin, http.StatusInternalServerError, "login failed")
			return
		}

		deps.Limiter.Reset(clientID)
		deps.Failures.RecordSuccess(clientID)

		token, err := deps.Auth.GenerateToken()
		if err != nil {
			logger.Error.Printf("token generation error: %v", err)
			loginFailed(w, r, deps.CSRF, jsonLogin, http.StatusInternalServerError, "login failed")
			return
		}

		if jsonLogin {
			writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresIn: CookieMaxAge})
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			MaxAge:   CookieMaxAge,
			Path:     CookiePath,
			Secure:   middleware.IsTLS(r),
			HttpOnly: true,
			SameSite: CookieSameSite,
		})
		http.Redirect(w, r, "/admin/", http.StatusSeeOther)
	}
}

func readPassword(w http.ResponseWriter, r *http.Request, jsonLogin bool) (string, error) {
	if !jsonLogin {
		return r.FormValue("password"), nil
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		return "", err
	}
	return req.Password, nil
}

func loginFailed(w http.ResponseWriter, r *http.Request, csrf *middleware.CSRF, jsonLogin bool, status int, msg string) {
	if jsonLogin {
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	renderLogin(w, r, csrf, msg, status)
}

func renderLogin(w http.ResponseWriter, r *http.Request, csrf *middleware.CSRF, errMsg string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = templates.Login(errMsg, csrf.Token(r)).Render(r.Context(), w)
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			MaxAge:   -1,
			Path:     CookiePath,
			Secure:   middleware.IsTLS(r),
			HttpOnly: true,
			SameSite: CookieSameSite,
		})

		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
	}
}

// clientIP trusts X-Forwarded-For only behind a reverse proxy, and then only
// its first hop.
func clientIP(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
