package mw

import "net/http"

// MaxBytes caps request bodies at n bytes. Reads past the cap fail with
// *http.MaxBytesError. n <= 0 disables the cap.
func MaxBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
