package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/omni/points-indexer/presenter/http/render"
)

type ctxKey int

const (
	addressCtxKey ctxKey = iota
	limitCtxKey
	filterCtxKey
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type FilterContext struct {
	Address *common.Address
	Limit   uint
}

func GetAddressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := chi.URLParam(r, "address")
		if address == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !common.IsHexAddress(address) {
			render.Error(w, r, render.BadRequest("invalid address %q", address))
			return
		}

		ctx := context.WithValue(r.Context(), addressCtxKey, common.HexToAddress(address))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limitStr := r.URL.Query().Get("limit")
		if limitStr == "" {
			next.ServeHTTP(w, r)
			return
		}
		limit, err := strconv.ParseUint(limitStr, 10, 32)
		if err != nil || limit == 0 {
			render.Error(w, r, render.BadRequest("invalid limit %q", limitStr))
			return
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}

		ctx := context.WithValue(r.Context(), limitCtxKey, uint(limit))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetFilterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter := &FilterContext{Limit: DefaultLimit}

		if address, ok := ctx.Value(addressCtxKey).(common.Address); ok {
			filter.Address = &address
		}
		if limit, ok := ctx.Value(limitCtxKey).(uint); ok {
			filter.Limit = limit
		}

		ctx = context.WithValue(ctx, filterCtxKey, filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetFilterContext(ctx context.Context) *FilterContext {
	if cfg, ok := ctx.Value(filterCtxKey).(*FilterContext); ok {
		return cfg
	}
	return &FilterContext{Limit: DefaultLimit}
}
