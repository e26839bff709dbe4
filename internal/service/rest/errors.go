package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/ui"
)

// apiError — тело ошибки {"code","message"} и HTTP-статус.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	errInvalidPayload = apiError{Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: "Invalid request payload"}
	errUnknownProfile = apiError{Status: http.StatusForbidden, Code: "UNKNOWN_PROFILE", Message: "Unknown permission profile"}
)

func mapError(err error) apiError {
	switch {
	case domain.IsPermissionDenied(err):
		return apiError{Status: http.StatusForbidden, Code: "PERMISSION_DENIED", Message: err.Error()}
	case domain.IsNotFound(err), errors.Is(err, ui.ErrSessionNotFound):
		return apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrEmptySelection):
		return apiError{Status: http.StatusBadRequest, Code: "EMPTY_SELECTION", Message: err.Error()}
	case errors.Is(err, domain.ErrOrderActivated):
		return apiError{Status: http.StatusConflict, Code: "ORDER_ACTIVATED", Message: err.Error()}
	case domain.IsVersionConflict(err):
		return apiError{Status: http.StatusConflict, Code: "VERSION_CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrPriceBookMismatch):
		return apiError{Status: http.StatusUnprocessableEntity, Code: "PRICE_BOOK_MISMATCH", Message: err.Error()}
	case errors.Is(err, domain.ErrConfirmationRejected):
		return apiError{Status: http.StatusBadGateway, Code: "CONFIRMATION_REJECTED", Message: err.Error()}
	case errors.Is(err, domain.ErrConfirmationTransport):
		return apiError{Status: http.StatusBadGateway, Code: "CONFIRMATION_UNAVAILABLE", Message: err.Error()}
	default:
		return apiError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "Internal error"}
	}
}

func abortWithError(c *gin.Context, err error) {
	apiErr := mapError(err)
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}
