package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the preview session token.
const CookieName = "authenticated"

// Auth guards the preview server with a single shared password. The cookie
// value is a random token generated at startup, so restarting the process
// logs every viewer out.
type Auth struct {
	password string
	token    string
}

func NewAuth(password string) *Auth {
	return &Auth{password: password, token: uuid.NewString()}
}

// Enabled reports whether a password is configured.
func (a *Auth) Enabled() bool {
	return a.password != ""
}

func (a *Auth) CheckPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

func (a *Auth) Token() string {
	return a.token
}

// Middleware sprawdza, czy użytkownik jest zalogowany (ma cookie z tokenem)
func (a *Auth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Strona podglądu i logowanie zawsze dostępne
		if r.URL.Path == "/" || r.URL.Path == "/auth/login" {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(a.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
