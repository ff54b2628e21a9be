package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MattHolloway/gatekeep/internal/auth"
	"github.com/MattHolloway/gatekeep/internal/handlers"
	"github.com/MattHolloway/gatekeep/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	tokenManager *auth.TokenManager,
) {
	loginLimit := middleware.LoginRateLimit()
	otpLimit := middleware.OTPRateLimit()

	// Public routes - no authentication required
	router.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/register", authHandler.Register)
		r.With(middleware.RateLimitByIP(loginLimit)).Post("/login", authHandler.Login)
		r.With(middleware.RateLimitByIP(loginLimit)).Post("/google", authHandler.OAuthLogin)
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/verify-otp", authHandler.VerifyOTP)
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/resend-otp", authHandler.ResendOTP)
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/forgot-password", authHandler.ForgotPassword)
		r.With(middleware.RateLimitByIP(otpLimit)).Post("/reset-password/{token}", authHandler.ResetPassword)
		r.Get("/logout", authHandler.Logout)
	})

	// Protected routes - session required
	router.Route("/api/user", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenManager))
		r.Get("/{id}", accountHandler.GetProfile)
		r.Put("/{id}", accountHandler.UpdateProfile)
	})
}
