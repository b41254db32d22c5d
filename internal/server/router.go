package server

import "net/http"

// routes builds the API surface.
//
// Reads are public. Mutations need a session; import, audit and role
// management need the admin role. The auth endpoints sit behind the per-IP
// rate limiter because they accept credentials.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/health", s.wrap(s.health))

	mux.Handle("POST /api/auth/register", s.rateLimit(s.wrap(s.register)))
	mux.Handle("POST /api/auth/login", s.rateLimit(s.wrap(s.login)))
	mux.Handle("POST /api/auth/verify-otp", s.rateLimit(s.wrap(s.verifyOTP)))
	mux.Handle("POST /api/auth/verify-email", s.rateLimit(s.wrap(s.verifyEmail)))
	mux.Handle("POST /api/auth/request-verification", s.rateLimit(s.wrap(s.requestVerification)))
	mux.Handle("POST /api/auth/password-reset", s.rateLimit(s.wrap(s.requestPasswordReset)))
	mux.Handle("POST /api/auth/password-reset/confirm", s.rateLimit(s.wrap(s.resetPassword)))
	mux.Handle("POST /api/auth/logout", s.wrap(s.logout))
	mux.Handle("POST /api/auth/refresh", s.wrap(s.refreshSession))
	mux.Handle("GET /api/auth/me", s.withUser(s.me))

	mux.Handle("GET /api/collections", s.wrap(s.listCollections))
	mux.Handle("GET /api/collections/{collection}", s.wrap(s.queryCollection))
	mux.Handle("POST /api/collections/{collection}", s.withUser(s.insert))
	mux.Handle("GET /api/collections/{collection}/audit", s.withAdmin(s.auditLog))
	mux.Handle("GET /api/collections/{collection}/export", s.withAdmin(s.exportCollection))
	mux.Handle("POST /api/collections/{collection}/import", s.withAdmin(s.importCollection))
	mux.Handle("GET /api/collections/{collection}/{key}", s.wrap(s.getItem))
	mux.Handle("PUT /api/collections/{collection}/{key}", s.withUser(s.update))
	mux.Handle("DELETE /api/collections/{collection}/{key}", s.withUser(s.delete))

	mux.Handle("POST /api/users/{key}/roles", s.withAdmin(s.assignRole))
	mux.Handle("DELETE /api/users/{key}/roles/{role}", s.withAdmin(s.removeRole))

	return mux
}
