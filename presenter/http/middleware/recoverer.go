package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/omni/points-indexer/presenter/http/render"
)

// Recoverer turns a handler panic into a 500 response. http.ErrAbortHandler is re-raised.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			if errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			render.Error(w, r, fmt.Errorf("recovered error from the http handler: %w", err))
		}()
		next.ServeHTTP(w, r)
	})
}
