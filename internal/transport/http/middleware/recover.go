package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

type WritePanicFunc func(w http.ResponseWriter, r *http.Request, err error, stack string)

// Recover turns a panic in a handler into a 500 response.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recover(writePanic WritePanicFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				writePanic(w, r, err, string(debug.Stack()))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
