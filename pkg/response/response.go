// Package response defines the JSON envelope returned by every API endpoint.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Please check your input.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var ShortCodeConflictResponse = Response{
	Status:  StatusError,
	Error:   "Short Code Conflict",
	Message: "The requested short code is already in use.",
}

var TooManyRequestsResponse = Response{
	Status:  StatusError,
	Error:   "Too Many Requests",
	Message: "Request rate limit exceeded. Please try again later.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SuccessResponse builds a success envelope with an optional data payload.
// Only the first data value is used.
func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 && data[0] != nil {
		resp.Data = data[0]
	}

	return resp
}

// ValidationErrorResponse maps a validator error into an error envelope whose
// details name each offending field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data. Please check the details.",
	}

	for _, ve := range getValidationErrors(err) {
		resp.Details = append(resp.Details, ve)
	}

	return resp
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	out := make([]validationError, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		out = append(out, validationError{
			Field: fieldErr.Field(),
			Value: fieldErr.Value(),
			Issue: issueForTag(fieldErr),
		})
	}

	return out
}

func issueForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "This field is required."
	case "url":
		return "Invalid url."
	case "alphanum":
		return "Only letters and digits are allowed."
	case "min":
		return fmt.Sprintf("Must be at least %s.", fieldErr.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s.", fieldErr.Param())
	default:
		return "Invalid value."
	}
}
