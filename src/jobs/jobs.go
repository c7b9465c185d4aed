/*
Package jobs tracks background goroutines so the service can shut them down
gracefully. A Job pairs a cancellable context with a done channel; Jobs
cancels a set of them and waits, with a deadline, for all to finish.
*/
package jobs

import (
	"context"
	"time"

	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/rs/zerolog"
)

type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger
	cancel func()
	done   chan struct{}
}

func New(name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.AttachLoggerToContext(&logger, ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Asks the job to wrap up. Called from outside the job, typically at
// shutdown; the job observes it through Canceled or its context.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

// Marks the job's work as completely done. Called by the job itself, exactly
// once.
func (j *Job) Finish() *Job {
	close(j.done)
	return j
}

func (j *Job) Finished() <-chan struct{} {
	return j.done
}

/*
Runs fn every interval until canceled. The first run happens after one full
interval, not immediately. Panics in fn are logged and do not kill the
ticker.
*/
func Periodic(name string, interval time.Duration, fn func(ctx context.Context)) *Job {
	job := New(name)
	go func() {
		defer job.Finish()

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-job.Canceled():
				return
			case <-t.C:
				func() {
					defer logging.LogPanics(&job.Logger)
					fn(job.Ctx)
				}()
			}
		}
	}()
	return job
}

// A set of jobs that shut down together. It is just a slice; construct it
// with slice syntax.
type Jobs []*Job

// Cancels every tracked job and waits up to timeout for them all to finish.
// Returns the names of the jobs that did not make it in time.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	for _, job := range jobs {
		job.Cancel()
	}

	allDone := make(chan struct{})
	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDone)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDone:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
