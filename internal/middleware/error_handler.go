package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openpayflow/orchestrator/internal/faults"
)

// errorEnvelope is the fixed JSON error shape spec.md §7 fixes:
// {success:false, error:{code, message, correlationId}}.
type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// CustomErrorHandler classifies any error the handler chain returns with
// a single type switch against faults.HTTPFault, generalized from the
// teacher's template-rendering CustomErrorHandler to the JSON envelope
// this API surface uses.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	correlationID, _ := c.Get("correlationId").(string)

	code := http.StatusInternalServerError
	body := errorBody{Code: "INTERNAL_ERROR", Message: "something went wrong", CorrelationID: correlationID}

	var hf faults.HTTPFault
	switch {
	case asHTTPFault(err, &hf):
		code = hf.HTTPStatus()
		body.Code = hf.FaultCode()
		body.Message = hf.Error()
	default:
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			}
			body.Code = http.StatusText(code)
		} else {
			c.Logger().Error(err)
		}
	}

	if code >= 500 {
		c.Logger().Errorf("correlationId=%s: %v", correlationID, err)
	}

	body.CorrelationID = correlationID
	if writeErr := c.JSON(code, errorEnvelope{Success: false, Error: body}); writeErr != nil {
		c.Logger().Error(writeErr)
	}
}

func asHTTPFault(err error, out *faults.HTTPFault) bool {
	if hf, ok := err.(faults.HTTPFault); ok {
		*out = hf
		return true
	}
	return false
}
