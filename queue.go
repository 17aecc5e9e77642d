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

package settlr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/internal/apierror"
	redis_db "github.com/blnkfinance/settlr/internal/redis-db"
	"github.com/blnkfinance/settlr/model"
)

// Queue represents a queue for running syncs and submissions in the background.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	config    config.QueueConfig
	uniqueFor time.Duration
}

// SyncTaskPayload is the payload of a background sync task.
type SyncTaskPayload struct {
	Filter model.PayoutFilter `json:"filter"`
}

// SubmitTaskPayload is the payload of a background submit task.
type SubmitTaskPayload struct {
	PayoutID string `json:"payout_id"`
}

// RedisClientOpt builds the asynq connection options from the configured Redis URL.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}, nil
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
// - error: An error if the Redis URL cannot be parsed.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
		config:    conf.Queue,
		uniqueFor: conf.LockTimeout(),
	}, nil
}

// Close releases the queue's Redis connections.
func (q *Queue) Close() error {
	return errors.Join(q.Client.Close(), q.Inspector.Close())
}

// NewSyncTask builds the task that runs one payout sync.
func NewSyncTask(queueName string, filter model.PayoutFilter) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncTaskPayload{Filter: filter})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(queueName, payload, asynq.Queue(queueName)), nil
}

// EnqueueSync enqueues a payout sync. Only one sync task can be pending at a time; a
// duplicate is rejected with CONFLICT.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - filter model.PayoutFilter: The payout filter for the run.
//
// Returns:
// - string: The id of the enqueued task.
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueSync(ctx context.Context, filter model.PayoutFilter) (string, error) {
	task, err := NewSyncTask(q.config.SyncQueue, filter)
	if err != nil {
		return "", err
	}

	info, err := q.Client.EnqueueContext(ctx, task, asynq.Unique(q.uniqueFor), asynq.MaxRetry(0))
	if err != nil {
		return "", enqueueError(err, "a payout sync is already queued")
	}
	logrus.WithField("task_id", info.ID).Info("enqueued payout sync")
	return info.ID, nil
}

// EnqueueSubmit enqueues the submission of one payout. The task id is derived from the
// payout id so a payout cannot be queued for submission twice.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - payoutID string: The payout to submit.
//
// Returns:
// - string: The id of the enqueued task.
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueSubmit(ctx context.Context, payoutID string) (string, error) {
	payload, err := json.Marshal(SubmitTaskPayload{PayoutID: payoutID})
	if err != nil {
		return "", err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(submitTaskID(payoutID)),
		asynq.Queue(q.config.SubmitQueue),
		asynq.MaxRetry(3),
	}
	task := asynq.NewTask(q.config.SubmitQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		return "", enqueueError(err, fmt.Sprintf("payout %s is already queued for submission", payoutID))
	}
	logrus.WithField("payout_id", payoutID).Info("enqueued payout submission")
	return info.ID, nil
}

// GetSubmitTask returns the state of the pending submission of a payout, or nil if none is queued.
func (q *Queue) GetSubmitTask(payoutID string) (*asynq.TaskInfo, error) {
	info, err := q.Inspector.GetTaskInfo(q.config.SubmitQueue, submitTaskID(payoutID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

func submitTaskID(payoutID string) string {
	return "submit_" + payoutID
}

func enqueueError(err error, conflict string) error {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return apierror.NewAPIError(apierror.ErrConflict, conflict, err)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, "failed to enqueue task", err)
}

// HandleSyncTask runs a payout sync for a dequeued sync task.
func (s *Settlr) HandleSyncTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode sync task: %v: %w", err, asynq.SkipRetry)
	}

	result, err := s.RunSync(ctx, payload.Filter)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) {
			logrus.WithError(err).Warn("payout sync already running, dropping task")
			return nil
		}
		s.notifier.NotifyError(err)
		return err
	}
	if len(result.Failed) > 0 {
		s.notifier.NotifyError(fmt.Errorf("payout sync failed for %d payouts: %v", len(result.Failed), result.Failed))
	}
	return nil
}

// HandleSubmitTask submits the payout named by a dequeued submit task.
func (s *Settlr) HandleSubmitTask(ctx context.Context, task *asynq.Task) error {
	var payload SubmitTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode submit task: %v: %w", err, asynq.SkipRetry)
	}

	_, err := s.RunSubmit(ctx, payload.PayoutID)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) || apierror.IsCode(err, apierror.ErrNotFound) {
			logrus.WithField("payout_id", payload.PayoutID).WithError(err).Warn("dropping submit task")
			return nil
		}
		s.notifier.NotifyError(err)
		if apierror.IsCode(err, apierror.ErrAccountResolution) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
