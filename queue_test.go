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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/mocks"
	"github.com/blnkfinance/settlr/model"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Dns = mr.Addr()
	cfg.Queue = config.QueueConfig{SyncQueue: "payout:sync", SubmitQueue: "payout:submit"}

	q, err := NewQueue(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestNewQueue_InvalidRedis(t *testing.T) {
	_, err := NewQueue(&config.Configuration{})
	assert.Error(t, err)
}

func TestEnqueueSubmit_RejectsDuplicates(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.EnqueueSubmit(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, "submit_1001", id)

	_, err = q.EnqueueSubmit(context.Background(), "1001")
	assert.True(t, apierror.IsCode(err, apierror.ErrConflict))

	info, err := q.GetSubmitTask("1001")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "payout:submit", info.Queue)

	var payload SubmitTaskPayload
	require.NoError(t, json.Unmarshal(info.Payload, &payload))
	assert.Equal(t, "1001", payload.PayoutID)
}

func TestGetSubmitTask_NotQueued(t *testing.T) {
	q := newTestQueue(t)

	info, err := q.GetSubmitTask("1001")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestEnqueueSync_Unique(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.EnqueueSync(context.Background(), model.PayoutFilter{Status: model.PayoutPaid})
	require.NoError(t, err)

	_, err = q.EnqueueSync(context.Background(), model.PayoutFilter{Status: model.PayoutPaid})
	assert.True(t, apierror.IsCode(err, apierror.ErrConflict))
}

func TestNewSyncTask(t *testing.T) {
	task, err := NewSyncTask("payout:sync", model.PayoutFilter{Status: model.PayoutInTransit})
	require.NoError(t, err)
	assert.Equal(t, "payout:sync", task.Type())

	var payload SyncTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, model.PayoutInTransit, payload.Filter.Status)
}

func TestHandleSyncTask_BadPayload(t *testing.T) {
	s, _, _ := newTestSettlr(t)

	err := s.HandleSyncTask(context.Background(), asynq.NewTask("payout:sync", []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSubmitTask(t *testing.T) {
	s, ds, _ := newTestSettlr(t)
	feed := &mocks.MockFeed{}
	feed.On("Close").Return(nil)
	s.SetFeedOpener(func(cfg *config.Configuration) (FeedSession, error) {
		return feed, nil
	})

	submitted := draftPayout()
	submitted.Submitted = true
	ds.On("GetPayout", mock.Anything, "1001").Return(submitted, nil)

	payload, err := json.Marshal(SubmitTaskPayload{PayoutID: "1001"})
	require.NoError(t, err)
	assert.NoError(t, s.HandleSubmitTask(context.Background(), asynq.NewTask("payout:submit", payload)))

	s.config.AccountMapping = map[string]string{}
	s.config.Ledger.PayoutAccount = ""
	draft := draftPayout()
	ds.On("GetPayout", mock.Anything, "1002").Return(draft, nil)
	ds.On("UpdatePayoutTransactions", mock.Anything, "1002", draft.Transactions).Return(nil)

	payload, err = json.Marshal(SubmitTaskPayload{PayoutID: "1002"})
	require.NoError(t, err)
	err = s.HandleSubmitTask(context.Background(), asynq.NewTask("payout:submit", payload))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.True(t, apierror.IsCode(err, apierror.ErrAccountResolution))
}
