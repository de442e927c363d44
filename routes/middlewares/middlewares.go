package middlewares

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"

	"surveyvault/config"
	"surveyvault/httpx"
	"surveyvault/survey"
)

// Admin requires a valid bearer token carrying the 'admin' role.
func Admin(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(cfg.TokenSecret, nil), admin).Handler(next)
	}
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromRequest(r)
		if user == nil || !user.IsAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MaybeUser resolves an optional caller identity. Requests without an
// Authorization header pass through anonymous; a token that is present but
// invalid is rejected. Token validation is replayed through a response buffer
// so a missing identity never short-circuits the request.
func MaybeUser(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			buf := httpx.NewResponseBuffer()
			authorized := false
			oauth.Authorize(cfg.TokenSecret, nil)(http.HandlerFunc(func(_ http.ResponseWriter, ar *http.Request) {
				authorized = true
				next.ServeHTTP(w, ar)
			})).ServeHTTP(buf, r)

			if !authorized {
				buf.Flush(w)
			}
		})
	}
}

// UserFromRequest rebuilds the caller from token claims, or nil if the
// request is anonymous.
func UserFromRequest(r *http.Request) *survey.User {
	claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	if !ok {
		return nil
	}
	id := claims["id"]
	if id == "" {
		return nil
	}

	user := &survey.User{ID: id, Name: claims["name"]}
	for _, role := range strings.Split(claims["roles"], ",") {
		if role == "admin" {
			user.IsAdmin = true
			break
		}
	}
	return user
}
