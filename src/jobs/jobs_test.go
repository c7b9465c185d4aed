package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelAndWait(t *testing.T) {
	t.Run("finishes fast enough", func(t *testing.T) {
		testJobs := Jobs{
			slowJob("Job A", time.Millisecond*100),
			slowJob("Job B", time.Millisecond*200),
		}

		before := time.Now()
		unfinished := testJobs.CancelAndWait(time.Second * 1)
		after := time.Now()
		assert.WithinDuration(t, after, before, time.Millisecond*500, "jobs did not finish fast enough")
		assert.Len(t, unfinished, 0)
	})
	t.Run("reports unfinished jobs", func(t *testing.T) {
		testJobs := Jobs{
			slowJob("Job A", time.Millisecond*100),
			slowJob("Job B", time.Second*10),
		}

		unfinished := testJobs.CancelAndWait(time.Second * 1)
		assert.Equal(t, []string{"Job B"}, unfinished)
	})
}

func TestPeriodic(t *testing.T) {
	var runs int32
	job := Periodic("ticker", time.Millisecond*20, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	}, 2*time.Second, time.Millisecond*5)

	unfinished := Jobs{job}.CancelAndWait(time.Second)
	assert.Len(t, unfinished, 0)
}

func TestPeriodicSurvivesPanics(t *testing.T) {
	var runs int32
	job := Periodic("panicky", time.Millisecond*10, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
		panic("transient trouble")
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, 2*time.Second, time.Millisecond*5)

	unfinished := Jobs{job}.CancelAndWait(time.Second)
	assert.Len(t, unfinished, 0)
}

func slowJob(name string, shutdownTime time.Duration) *Job {
	job := New(name)
	go func() {
		<-job.Canceled()
		time.Sleep(shutdownTime)
		job.Finish()
	}()
	return job
}
