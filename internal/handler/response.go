package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Payphone-Digital/account-service/internal/constants"
	apperrors "github.com/Payphone-Digital/account-service/internal/errors"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"github.com/Payphone-Digital/account-service/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// normalizer is implemented by requests that clean their input, such as
// trimming an email address, before the binding rules run.
type normalizer interface {
	Normalize()
}

// bindJSON decodes the body into req. Rule violations are answered with 422
// and a field-keyed map, anything else unreadable with 400.
func bindJSON(ctx context.Context, c *gin.Context, req interface{}) bool {
	err := decodeAndValidate(c, req)
	if err == nil {
		return true
	}

	if fields := validation.FieldErrors(err); fields != nil {
		logger.DebugWithContext(ctx, "Request validation failed").
			Any("fields", fields).
			Log()
		c.JSON(http.StatusUnprocessableEntity, constants.BuildValidationErrorResponse(fields))
		return false
	}

	logger.WarnWithContext(ctx, "Invalid request body").Err(err).Log()
	c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, nil))
	return false
}

func decodeAndValidate(c *gin.Context, req interface{}) error {
	body, err := c.GetRawData()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, req); err != nil {
		return err
	}
	if n, ok := req.(normalizer); ok {
		n.Normalize()
	}
	return binding.Validator.ValidateStruct(req)
}

// respondError maps err to its status and caller-safe message. Server-side
// failures are logged in full here.
func respondError(ctx context.Context, c *gin.Context, err error) {
	if v := apperrors.GetValidationError(err); v != nil {
		c.JSON(http.StatusUnprocessableEntity, constants.BuildValidationErrorResponse(v.Fields))
		return
	}

	status := apperrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorWithContext(ctx, "Request failed").
			Int("http_status", status).
			Err(err).
			Log()
	}
	c.JSON(status, constants.BuildErrorResponse(apperrors.GetErrorMessage(err), nil))
}
