package website

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/colloquyhq/colloquy/src/perf"
	"github.com/colloquyhq/colloquy/src/views"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupContext(conn *pgxpool.Pool, viewCache *views.ViewCache) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			c.Conn = conn
			c.Views = viewCache
			return h(c)
		}
	}
}

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(error)
				var err error
				if ok {
					err = maybeError
				} else {
					err = oops.New(nil, fmt.Sprintf("Recovered from panic with value: %v", recovered))
				}
				res = c.ErrorResponse(http.StatusInternalServerError, err)
			}
		}()

		return h(c)
	}
}

func trackRequestPerf(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		c.Perf = perf.MakeNewRequestPerf(c.Route, c.Req.Method, c.Req.URL.Path)
		defer func() {
			c.Perf.EndRequest()
			log := logging.Info()
			for i, block := range c.Perf.Blocks {
				log.Str(
					fmt.Sprintf("[%4.d] At %9.2fms", i, c.Perf.MsFromStart(&block)),
					fmt.Sprintf("[%s] %s (%.4fms)", block.Category, block.Description, block.DurationMs()),
				)
			}
			log.Msg(fmt.Sprintf("Served [%s] %s in %.4fms", c.Perf.Method, c.Perf.Path, float64(c.Perf.End.Sub(c.Perf.Start).Nanoseconds())/1000/1000))
		}()

		return h(c)
	}
}

/*
Resolves the current user. Authentication itself lives in front of this
service; by the time a request gets here, a trusted proxy has verified the
caller and stamped their id on the request. An absent or unknown id just
means an anonymous request.
*/
func currentUserMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		idStr := c.Req.Header.Get("X-Colloquy-User-Id")
		if idStr != "" {
			userID, err := strconv.Atoi(idStr)
			if err == nil {
				user, err := cqdata.FetchUser(c, c.Conn, userID)
				if err == nil {
					c.CurrentUser = user
				} else if !errors.Is(err, db.NotFound) {
					return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to fetch current user"))
				}
			}
		}

		return h(c)
	}
}

func needsAuth(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		if c.CurrentUser == nil {
			var res ResponseData
			res.WriteJson(errorPayload{Error: "authentication required"}, http.StatusUnauthorized)
			return res
		}

		return h(c)
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}
