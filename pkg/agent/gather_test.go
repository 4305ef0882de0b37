package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/semaphore"
)

func TestGather_RespectsFanoutBudget(t *testing.T) {
	deps := &Deps{}
	sem := semaphore.NewWeighted(2)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	tasks := make([]gatherTask, 8)
	for i := range tasks {
		tasks[i] = gatherTask{
			key: fmt.Sprintf("task-%d", i),
			run: func(context.Context) (string, error) {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return "ok", nil
			},
		}
	}

	results := deps.gather(context.Background(), sem, "team_analyst", tasks)

	assert.Len(t, results, 8)
	for _, v := range results {
		assert.Equal(t, "ok", v)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "no more than the budget may run at once")
}

func TestGather_NilSemaphoreIsUnbounded(t *testing.T) {
	deps := &Deps{}

	// Every task blocks until all of them are running, which only
	// terminates when nothing throttles the fanout.
	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	tasks := make([]gatherTask, n)
	for i := range tasks {
		tasks[i] = gatherTask{
			key: fmt.Sprintf("task-%d", i),
			run: func(context.Context) (string, error) {
				wg.Done()
				wg.Wait()
				return "ok", nil
			},
		}
	}

	results := deps.gather(context.Background(), nil, "market_analyst", tasks)
	assert.Len(t, results, n)
}

func TestGather_CanceledContextYieldsUnavailable(t *testing.T) {
	deps := &Deps{}
	sem := semaphore.NewWeighted(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	results := deps.gather(ctx, sem, "team_analyst", []gatherTask{{
		key: "web",
		run: func(context.Context) (string, error) {
			ran = true
			return "ok", nil
		},
	}})

	assert.False(t, ran, "no call starts once the session is canceled")
	assert.Equal(t, unavailableMarker, results["web"])
}
