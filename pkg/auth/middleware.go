package auth

import "net/http"

// FailureFunc writes the response for a rejected request.
type FailureFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects requests without a valid bearer token before they reach
// next, and stores the principal in the request context otherwise.
// The WWW-Authenticate challenge is set before fail is called.
func Middleware(tokens *Tokens, fail FailureFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err == nil {
				var principal string
				if principal, err = tokens.Validate(token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
					return
				}
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			fail(w, r, err)
		})
	}
}
