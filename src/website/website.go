package website

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/colloquyhq/colloquy/src/config"
	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/jobs"
	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/views"
	"github.com/spf13/cobra"
)

var ServiceCommand = &cobra.Command{
	Use:   "colloquy",
	Short: "Run the Colloquy discussion service",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Msg("Hello, Colloquy!")

		var wg sync.WaitGroup

		conn := db.NewConnPool()

		viewCache := views.NewViewCache(context.Background(), func(ctx context.Context, topicID int) ([]*models.Entry, error) {
			return cqdata.FetchEntriesForView(ctx, conn, topicID)
		})

		// Start background jobs
		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			evictIdleViews(viewCache),
		}

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr:    config.Config.Addr,
			Handler: NewApiRoutes(conn, viewCache),
		}
		go func() {
			logging.Info().Str("addr", config.Config.Addr).Msg("Serving the discussion API")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// Wait for SIGINT in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		go func() {
			<-signals // First SIGINT (start shutdown)
			logging.Info().Msg("Shutting down the service")

			const timeout = 10 * time.Second

			go func() {
				logging.Info().Msg("Shutting down background jobs...")
				unfinished := backgroundJobs.CancelAndWait(timeout)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the service")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}

// Bounds the view cache's memory to recently-read topics. The sweep interval
// rides on the same setting as the idle cutoff; precision doesn't matter
// here.
func evictIdleViews(viewCache *views.ViewCache) *jobs.Job {
	ttl := time.Duration(config.Config.Views.EvictAfterSeconds) * time.Second
	if ttl <= 0 {
		job := jobs.New("view cache eviction (disabled)")
		go func() {
			<-job.Canceled()
			job.Finish()
		}()
		return job
	}

	return jobs.Periodic("view cache eviction", ttl, func(ctx context.Context) {
		evicted := viewCache.EvictIdle(ttl)
		if evicted > 0 {
			logging.ExtractLogger(ctx).Info().Int("evicted", evicted).Msg("Evicted idle topic views")
		}
	})
}
