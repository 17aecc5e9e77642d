/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/blnkfinance/settlr"
	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/model"
)

// initializeQueues returns the queues served by the workers and their priorities.
func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.SubmitQueue: 3,
		cfg.Queue.SyncQueue:   1,
	}
}

func initializeWorkerServer(redisOpt asynq.RedisClientOpt, cfg *config.Configuration) *asynq.Server {
	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues:      initializeQueues(cfg),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logrus.WithFields(logrus.Fields{
					"task_type": task.Type(),
				}).WithError(err).Error("task failed")
			}),
		},
	)
}

func initializeTaskHandlers(s *settlrInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(s.cnf.Queue.SyncQueue, s.settlr.HandleSyncTask)
	mux.HandleFunc(s.cnf.Queue.SubmitQueue, s.settlr.HandleSubmitTask)
}

// initializeScheduler registers the periodic payout sync. The task carries an empty filter so
// each run resumes from the recorded sync position.
func initializeScheduler(redisOpt asynq.RedisClientOpt, cfg *config.Configuration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})

	task, err := settlr.NewSyncTask(cfg.Queue.SyncQueue, model.PayoutFilter{})
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(cfg.Sync.Schedule, task, asynq.Unique(cfg.LockTimeout()), asynq.MaxRetry(0))
	if err != nil {
		return nil, fmt.Errorf("error registering sync schedule %q: %v", cfg.Sync.Schedule, err)
	}
	logrus.WithFields(logrus.Fields{"entry_id": entryID, "schedule": cfg.Sync.Schedule}).Info("registered payout sync")
	return scheduler, nil
}

func startMonitoring(redisOpt asynq.RedisClientOpt, port string) {
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOpt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", port)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Printf("could not start asynqmon server: %v", err)
		}
	}()
}

// workerCommands defines the "workers" command. The workers serve the sync and submit queues
// and enqueue the scheduled sync.
func workerCommands(s *settlrInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start settlr workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if s.cnf.Telemetry.ElasticAPM {
				logrus.AddHook(&apmlogrus.Hook{})
			}

			phClient, shutdown, err := initializeObservability(ctx, s.cnf, "workers")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			redisOpt, err := settlr.RedisClientOpt(s.cnf)
			if err != nil {
				log.Fatalf("error parsing Redis URL: %v", err)
			}

			scheduler, err := initializeScheduler(redisOpt, s.cnf)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			mux := asynq.NewServeMux()
			initializeTaskHandlers(s, mux)

			startMonitoring(redisOpt, s.cnf.Queue.MonitoringPort)

			srv := initializeWorkerServer(redisOpt, s.cnf)
			if err := srv.Run(mux); err != nil {
				log.Printf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
