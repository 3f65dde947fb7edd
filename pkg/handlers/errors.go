package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/content"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/utils"
)

// writeServiceError maps service errors onto the response envelope.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *utils.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.WriteValidationErrorResponse(w, "Validation failed", verr.Fields)
	case errors.Is(err, auth.ErrNotAuthenticated):
		utils.WriteUnauthorizedResponse(w, "Authentication required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		utils.WriteUnauthorizedResponse(w, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		utils.WriteBadRequestResponse(w, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		utils.WriteConflictResponse(w, auth.ErrEmailTaken.Error())
	case errors.Is(err, entitlement.ErrAnonymousUser):
		utils.WriteForbiddenResponse(w, "Create an account to subscribe")
	case errors.Is(err, entitlement.ErrFeatureLocked):
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "UPGRADE_REQUIRED", "Upgrade your plan to access this content", err.Error())
	case errors.Is(err, entitlement.ErrNotFound), errors.Is(err, content.ErrNotFound):
		utils.WriteNotFoundResponse(w, err.Error())
	default:
		logger.Error("request failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
	}
}

// decode parses and validates a JSON body into dst.
func decode(r *http.Request, v *utils.Validator, dst interface{}) error {
	if err := utils.ParseJSONBody(r, dst); err != nil {
		return &utils.ValidationError{Fields: map[string]string{"body": err.Error()}}
	}
	return v.Validate(dst)
}
