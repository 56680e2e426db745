package handlers

import (
	"net/http"

	"plantdoctor/internal/middleware"
)

// LogoutHandler clears the authentication cookie and redirects to the preview page.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   middleware.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1, // usuwa cookie
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
