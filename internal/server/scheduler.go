package server

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seoforge/seoforge/internal/pipeline"
	"github.com/seoforge/seoforge/internal/store"
)

// Janitor requeues runs that never left pending, typically because the
// process restarted between accepting the run and executing it. A
// redis SetNX lock keeps multiple replicas from double-requeueing the
// same run.
type Janitor struct {
	Store      *store.Store
	Controller *pipeline.Controller
	Rdb        *redis.Client
	Stop       chan struct{}
	Logger     *log.Logger

	Interval time.Duration
	StaleAge time.Duration
}

func (j *Janitor) Start() {
	if j.Logger == nil {
		j.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	if j.Interval <= 0 {
		j.Interval = 2 * time.Minute
	}
	if j.StaleAge <= 0 {
		j.StaleAge = 2 * time.Minute
	}
	ticker := time.NewTicker(j.Interval)
	go func() {
		for {
			select {
			case <-j.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				j.tick()
			}
		}
	}()
}

func (j *Janitor) tick() {
	ctx := context.Background()
	runs, err := j.Store.ListStalePendingRuns(ctx, j.StaleAge)
	if err != nil {
		j.Logger.Printf("list stale runs: %v", err)
		return
	}
	for _, run := range runs {
		if j.Rdb != nil {
			lockKey := "janitor:lock:" + run.ID
			ok, err := j.Rdb.SetNX(ctx, lockKey, "1", 2*j.Interval).Result()
			if err != nil || !ok {
				continue
			}
		}
		j.Logger.Printf("requeueing stale pending run %s", run.ID)
		go j.Controller.Execute(context.Background(), run.ID)
	}
}
