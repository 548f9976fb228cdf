package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	aggdomain "github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	paymentdomain "github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	"github.com/railzwaylabs/cipherpoll/internal/report"
	subdomain "github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
)

// APIError is an error with a fixed HTTP status and a stable code.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string { return e.Message }

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

type errorMapping struct {
	err    error
	status int
}

var errorMappings = []errorMapping{
	{ErrUnauthorized, http.StatusUnauthorized},
	{identity.ErrMissingCaller, http.StatusUnauthorized},
	{ErrNotFound, http.StatusNotFound},

	{channeldomain.ErrChannelNotFound, http.StatusNotFound},
	{channeldomain.ErrTierNotFound, http.StatusNotFound},
	{topicdomain.ErrTopicNotFound, http.StatusNotFound},
	{subdomain.ErrNoSubscription, http.StatusNotFound},
	{accesspass.ErrNotFound, http.StatusNotFound},

	{ErrForbidden, http.StatusForbidden},
	{topicdomain.ErrNotChannelOwner, http.StatusForbidden},
	{aggdomain.ErrSubscriptionRequired, http.StatusForbidden},

	{channeldomain.ErrInvalidTierConfig, http.StatusBadRequest},
	{topicdomain.ErrInvalidEndDate, http.StatusBadRequest},
	{topicdomain.ErrInvalidValueRange, http.StatusBadRequest},
	{encdomain.ErrInvalidCiphertext, http.StatusBadRequest},
	{paymentdomain.ErrInvalidAmount, http.StatusBadRequest},
	{paymentdomain.ErrInvalidToken, http.StatusBadRequest},
	{accesspass.ErrInvalidFormat, http.StatusBadRequest},

	{aggdomain.ErrValueOutOfRange, http.StatusUnprocessableEntity},
	{subdomain.ErrInsufficientPayment, http.StatusUnprocessableEntity},
	{subdomain.ErrUnsupportedPaymentToken, http.StatusUnprocessableEntity},
	{paymentdomain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{accesspass.ErrInvalidSignature, http.StatusUnprocessableEntity},
	{accesspass.ErrExpired, http.StatusUnprocessableEntity},

	{topicdomain.ErrTopicNotOpen, http.StatusConflict},
	{topicdomain.ErrTopicExpired, http.StatusConflict},
	{topicdomain.ErrTopicStillOpen, http.StatusConflict},
	{aggdomain.ErrDuplicateSubmission, http.StatusConflict},
	{aggdomain.ErrAggregateCapacityExceeded, http.StatusConflict},
	{aggdomain.ErrUnknownDecryptionRequest, http.StatusConflict},
	{report.ErrTopicNotFinalized, http.StatusConflict},
}

// AbortWithError writes the error envelope and stops the handler chain.
// Unknown errors are reported as internal_error without their message.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{Error: ErrorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Field:   apiErr.Field,
		}})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.AbortWithStatusJSON(m.status, ErrorResponse{Error: ErrorBody{
				Code:    m.err.Error(),
				Message: err.Error(),
			}})
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
		Code:    "internal_error",
		Message: "internal server error",
	}})
}
