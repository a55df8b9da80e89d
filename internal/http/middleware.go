package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Clark-Hu/specialist-directory/internal/auth"
	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

type ctxKey int

const userCtxKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

// requestID reuses an inbound X-Request-ID or mints a UUID, and stores it
// where chi's middleware.GetReqID finds it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("http access",
			"rid", middleware.GetReqID(r.Context()),
			"ip", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"resp_bytes", ww.BytesWritten(),
			"ua", r.UserAgent(),
		)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided.")
			return
		}
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token expired")
			case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrInactiveUser):
				s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Given token not valid for any token type")
			default:
				s.logger.Error("authenticate failed", "error", err)
				s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to authenticate")
			}
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r)
		if !ok || !(user.IsStaff || user.IsAdmin) {
			s.respondError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) (domain.User, bool) {
	u, ok := r.Context().Value(userCtxKey).(domain.User)
	return u, ok
}

func withUser(r *http.Request, u domain.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userCtxKey, u))
}

// canManage reports whether user may mutate records owned by ownerID.
func canManage(user domain.User, ownerID int64) bool {
	return user.ID == ownerID || user.IsStaff || user.IsAdmin
}

func bearerTokenFromHeader(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
