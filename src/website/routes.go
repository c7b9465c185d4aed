package website

import (
	"net/http"
	"regexp"

	"github.com/colloquyhq/colloquy/src/views"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewApiRoutes(conn *pgxpool.Pool, viewCache *views.ViewCache) http.Handler {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			setupContext(conn, viewCache),
			trackRequestPerf,
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
			currentUserMiddleware,
		},
	}
	authed := routes.WithMiddleware(needsAuth)

	// Reads
	routes.GET(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/view$`), GetView)
	routes.GET(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/entries$`), ListRootEntries)
	routes.GET(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/entrylist$`), EntryList)
	routes.GET(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/replies$`), ListReplies)

	// Writes
	authed.POST(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/entries$`), AddEntry)
	authed.POST(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/replies$`), AddReply)
	authed.POST(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/edit$`), EditEntry)
	authed.POST(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/delete$`), DeleteEntry)

	// Read-state marks
	authed.POST(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/read$`), MarkTopicRead)
	authed.POST(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/unread$`), MarkTopicUnread)
	authed.POST(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/readall$`), MarkAllRead)
	authed.POST(regexp.MustCompile(`^/topics/(?P<topicid>\d+)/unreadall$`), MarkAllUnread)
	authed.POST(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/read$`), MarkEntryRead)
	authed.POST(regexp.MustCompile(`^/entries/(?P<entryid>\d+)/unread$`), MarkEntryUnread)

	routes.AnyMethod(regexp.MustCompile(`^`), FourOhFour)

	return router
}
