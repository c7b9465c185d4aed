package website

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	router := &Router{}
	routes := RouteBuilder{Router: router}

	var gotTopicID string
	routes.GET(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/view$`), func(c *RequestContext) ResponseData {
		gotTopicID = c.PathParams["topicid"]
		var res ResponseData
		res.WriteJson(map[string]bool{"ok": true}, http.StatusOK)
		return res
	})
	routes.POST(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/read$`), func(c *RequestContext) ResponseData {
		return ResponseData{StatusCode: http.StatusNoContent}
	})
	routes.AnyMethod(regexp.MustCompile(`^`), FourOhFour)

	t.Run("matches and captures params", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics/42/view", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "42", gotTopicID)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("trailing slashes are tolerated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics/42/view/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("method matters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/topics/42/view", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric ids do not match", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics/oops/view", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("HEAD routes like GET but sends no body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/topics/42/view", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.Bytes())
	})
}

func TestPanicCatcher(t *testing.T) {
	router := &Router{}
	routes := RouteBuilder{
		Router:      router,
		Middlewares: []Middleware{panicCatcherMiddleware},
	}
	routes.GET(regexp.MustCompile(`^/boom$`), func(c *RequestContext) ResponseData {
		panic("something went sideways")
	})
	routes.AnyMethod(regexp.MustCompile(`^`), FourOhFour)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.Error)
}

func TestNeedsAuth(t *testing.T) {
	router := &Router{}
	routes := RouteBuilder{
		Router:      router,
		Middlewares: []Middleware{needsAuth},
	}
	routes.POST(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/read$`), func(c *RequestContext) ResponseData {
		t.Fatal("handler must not run for anonymous requests")
		return ResponseData{}
	})
	routes.AnyMethod(regexp.MustCompile(`^`), FourOhFour)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/entries/5/read", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
