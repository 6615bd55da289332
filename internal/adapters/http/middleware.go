package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgeworks/auth-connector/internal/application"
	"github.com/forgeworks/auth-connector/internal/domain"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// mapDomainError projects the closed application and domain error sets onto
// HTTP status codes and stable machine-readable error codes.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrRedirectGeneration):
		return http.StatusServiceUnavailable, "REDIRECT_GENERATION_FAILED", "could not build provider redirect"
	case errors.Is(err, domain.ErrMissingIDToken):
		return http.StatusBadRequest, "MISSING_ID_TOKEN", "provider response did not include an id token"
	case errors.Is(err, application.ErrProviderTokenRetrieval):
		return http.StatusServiceUnavailable, "PROVIDER_EXCHANGE_FAILED", "could not exchange authorization code"
	case errors.Is(err, application.ErrInternalTokenCreation):
		return http.StatusInternalServerError, "TOKEN_CREATION_FAILED", "could not establish session"
	case errors.Is(err, application.ErrTokenRefresh):
		return http.StatusUnauthorized, "REFRESH_FAILED", "invalid or expired refresh token"
	case errors.Is(err, application.ErrAccessTokenVerification):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired access token"
	case errors.Is(err, application.ErrAuthenticatedUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "authenticated user no longer exists"
	case errors.Is(err, application.ErrLogoutURLGeneration):
		return http.StatusInternalServerError, "LOGOUT_URL_FAILED", "could not build provider logout url"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired"
	case errors.Is(err, domain.ErrDataIntegrity):
		return http.StatusConflict, "CONFLICT", "conflicting account state"
	case errors.Is(err, domain.ErrStorageConnection):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
