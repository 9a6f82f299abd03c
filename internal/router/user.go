package router

import "github.com/gin-gonic/gin"

// userRoutes serves the signed-in user's own profile. rg is already guarded.
func (r *Router) userRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", r.userHandler.Me)
	rg.PATCH("/profile", r.userHandler.EditProfile)
}
