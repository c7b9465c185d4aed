package website

import (
	"errors"
	"net/http"

	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/db"
)

type errorPayload struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (c *RequestContext) ErrorResponse(status int, errs ...error) ResponseData {
	res := ResponseData{
		Errors: errs,
	}
	res.WriteJson(errorPayload{Error: http.StatusText(status)}, status)
	return res
}

func FourOhFour(c *RequestContext) ResponseData {
	var res ResponseData
	res.WriteJson(errorPayload{Error: "not found"}, http.StatusNotFound)
	return res
}

// The materialized view is being (re)built. Transient and expected; the
// client retries.
func notReady(c *RequestContext) ResponseData {
	var res ResponseData
	res.Header().Set("Retry-After", "1")
	res.WriteJson(map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
	return res
}

func forbidden(c *RequestContext, reason string) ResponseData {
	var res ResponseData
	res.WriteJson(errorPayload{Error: reason}, http.StatusForbidden)
	return res
}

/*
Turns the errors our data helpers return into the right response: missing
rows are 404s, permission problems are 403s, rejected input is a 422 with
field detail, and anything else is a logged 500.
*/
func dataErrorResponse(c *RequestContext, err error) ResponseData {
	switch {
	case errors.Is(err, db.NotFound):
		return FourOhFour(c)
	case errors.Is(err, cqdata.ErrForbidden):
		return forbidden(c, "forbidden")
	}

	var validation *cqdata.ValidationError
	if errors.As(err, &validation) {
		var res ResponseData
		res.WriteJson(errorPayload{
			Error:  "validation failed",
			Fields: validation.Fields,
		}, http.StatusUnprocessableEntity)
		return res
	}

	return c.ErrorResponse(http.StatusInternalServerError, err)
}
