package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user resolved from the bearer token, or nil for an
// anonymous request.
func CurrentUser(ctx context.Context) *models.UserResponse {
	u, _ := ctx.Value(currentUserKey).(*models.UserResponse)
	return u
}

// bearerToken extracts the token from "Authorization: Bearer <token>". Any
// other header shape counts as no token.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(common.AuthorizationHeaderName), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// resolveUser attaches the current user to the request context.
//
//   - no bearer token: anonymous
//   - token fails verification: 401 (expired or invalid)
//   - token valid but the user no longer exists: anonymous
func (s *Server) resolveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		subject, err := s.auth.VerifyAccessToken(token)
		if err != nil {
			writeError(ctx, w, s.logger, err)
			return
		}

		user, err := s.users.GetUserByID(ctx, subject)
		switch {
		case errors.Is(err, common.ErrUserNotFound):
			next.ServeHTTP(w, r)
			return
		case err != nil:
			writeError(ctx, w, s.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, currentUserKey, user)))
	})
}

// requireUser admits authenticated USER and ADMIN accounts.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := CurrentUser(r.Context())
		if u == nil {
			writeError(r.Context(), w, s.logger, common.ErrorUnauthorized)
			return
		}
		if !u.Role.Valid() {
			writeError(r.Context(), w, s.logger, common.ErrorForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin admits ADMIN accounts only; everyone else, anonymous
// included, is forbidden.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := CurrentUser(r.Context())
		if u == nil || u.Role != models.RoleAdmin {
			writeError(r.Context(), w, s.logger, common.ErrorForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request once it has been served and
// echoes the request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set(common.RequestIDHeaderName, reqID)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", reqID,
		)
	})
}
