package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/account-service/internal/constants"
	"github.com/Payphone-Digital/account-service/internal/dto"
	"github.com/Payphone-Digital/account-service/internal/middleware"
	"github.com/Payphone-Digital/account-service/internal/model"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/gin-gonic/gin"
)

// ProfileManager serves the signed-in user's own record.
type ProfileManager interface {
	Me(ctx context.Context, user *model.User) *model.User
	EditProfile(ctx context.Context, user *model.User, req dto.EditProfileRequest) (*model.User, error)
}

type UserHandler struct {
	profiles ProfileManager
}

func NewUserHandler(profiles ProfileManager) *UserHandler {
	return &UserHandler{profiles: profiles}
}

func (h *UserHandler) Me(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "Me")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgMe, dto.ToUserResponse(h.profiles.Me(ctx, user))))
}

func (h *UserHandler) EditProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), "handler", "EditProfile")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	var req dto.EditProfileRequest
	if !bindJSON(ctx, c, &req) {
		return
	}

	updated, err := h.profiles.EditProfile(ctx, user, req)
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgProfileUpdateSuccessful, dto.ToUserResponse(updated)))
}
