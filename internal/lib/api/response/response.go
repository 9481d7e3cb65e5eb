package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func OKWithMessage(msg string) Response {
	return Response{
		Status:  StatusOK,
		Message: msg,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	fields := make(map[string]string, len(errs))

	for _, err := range errs {
		var msg string

		switch err.ActualTag() {
		case "required":
			msg = fmt.Sprintf("field %s is a required field", err.Field())
		case "email":
			msg = fmt.Sprintf("field %s is not a valid email", err.Field())
		case "min":
			msg = fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param())
		case "max":
			msg = fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param())
		case "maxbytes":
			msg = fmt.Sprintf("field %s must be at most %s bytes", err.Field(), err.Param())
		case "alphanum":
			msg = fmt.Sprintf("field %s must contain only letters and digits", err.Field())
		default:
			msg = fmt.Sprintf("field %s is not valid", err.Field())
		}

		errMsgs = append(errMsgs, msg)
		fields[err.Field()] = msg
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMsgs, ", "),
		Errors: fields,
	}
}
