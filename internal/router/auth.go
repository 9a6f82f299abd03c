package router

import "github.com/gin-gonic/gin"

func (r *Router) authRoutes(version *gin.RouterGroup) {
	auth := version.Group("/auth")
	{
		// Public routes
		auth.POST("/login", r.authHandler.Login)
		auth.POST("/signup", r.authHandler.Signup)
		auth.POST("/verify-email", r.authHandler.VerifyEmail)
		auth.POST("/resend-verification", r.authHandler.ResendVerification)
		auth.POST("/forgot-password", r.authHandler.ForgotPassword)
		auth.POST("/reset-password", r.authHandler.ResetPassword)

		protected := auth.Group("")
		protected.Use(r.jwtMw.RequireAuth())
		{
			r.userRoutes(protected)
			protected.POST("/change-password", r.authHandler.ChangePassword)
			protected.POST("/logout", r.authHandler.Logout)
		}
	}
}
