// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// Authorization Principles:
// 1. The transport only authenticates; every authorization decision is made
//    by the core operation against the identity it is handed.
// 2. Organization scope is never taken from headers or query parameters.

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware resolves the bearer token or session cookie into an
// identity and stores it in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := h.credentialFrom(r)

		ident, err := h.auth.Authenticate(r.Context(), credential)
		if err != nil {
			h.auditLogger.Log(r.Context(), audit.Event{
				Type:     audit.TypeAccessDenied,
				ActorID:  "anonymous",
				Resource: r.URL.Path,
				Metadata: map[string]any{
					"reason":     err.Error(),
					"ip_address": getIPAddress(r),
				},
			})
			// Only a rejected credential ends the session; store outages keep it.
			if credential != "" && apperr.KindOf(err) == apperr.KindUnauthenticated &&
				!strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				h.clearSessionCookie(w)
			}
			respondAppError(w, r, err)
			return
		}

		slog.DebugContext(r.Context(), "request authenticated",
			logger.UserID(ident.UserID),
			logger.Role(string(ident.Role)),
		)
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), ident)))
	})
}

func (h *Handler) credentialFrom(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	cookie, err := r.Cookie(h.config.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
