package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const ctxDeviceID contextKey = "device_id"

const deviceIDHeader = "X-Device-Id"

func DeviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxDeviceID).(string); ok {
		return v
	}
	return ""
}

// WithDeviceID injects the terminal identifier into the context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxDeviceID, deviceID)
}

// Device stamps every request with the register this daemon drives.
func Device(deviceID string) func(http.Handler) http.Handler {
	deviceID = strings.TrimSpace(deviceID)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deviceID == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set(deviceIDHeader, deviceID)
			next.ServeHTTP(w, r.WithContext(WithDeviceID(r.Context(), deviceID)))
		})
	}
}
