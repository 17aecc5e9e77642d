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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/settlr"
	"github.com/blnkfinance/settlr/config"
	dbmocks "github.com/blnkfinance/settlr/database/mocks"
	"github.com/blnkfinance/settlr/internal/apierror"
	"github.com/blnkfinance/settlr/mocks"
	"github.com/blnkfinance/settlr/model"
)

type fakeQueue struct {
	syncs   []model.PayoutFilter
	submits []string
	err     error
}

func (q *fakeQueue) EnqueueSync(_ context.Context, filter model.PayoutFilter) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.syncs = append(q.syncs, filter)
	return "sync-task", nil
}

func (q *fakeQueue) EnqueueSubmit(_ context.Context, payoutID string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.submits = append(q.submits, payoutID)
	return "submit_" + payoutID, nil
}

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T, queue TaskQueue) (*gin.Engine, *settlr.Settlr, *dbmocks.MockDataSource) {
	t.Helper()
	cfg := &config.Configuration{
		ProjectName: "settlr-test",
		Platform:    config.PlatformConfig{PayoutStatus: "paid"},
		Ledger:      config.LedgerConfig{Company: "Acme", PayoutAccount: "Bank - AC"},
	}
	ds := &dbmocks.MockDataSource{}
	s := settlr.NewSettlr(cfg, ds, &mocks.MockERP{}, nil)
	return NewAPI(s, queue).Router(), s, ds
}

func TestGetPayouts(t *testing.T) {
	router, _, ds := setupRouter(t, nil)
	ds.On("GetPayouts", mock.Anything, 10, 20).Return([]model.Payout{{PayoutID: "1001"}, {PayoutID: "1000"}}, nil)

	var payouts []model.Payout
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodGet,
		Route:    "/payouts?limit=10&offset=20",
		Response: &payouts,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, payouts, 2)
}

func TestGetPayouts_BadPagination(t *testing.T) {
	router, _, _ := setupRouter(t, nil)

	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/payouts?limit=1000"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetPayout_NotFound(t *testing.T) {
	router, _, ds := setupRouter(t, nil)
	ds.On("GetPayout", mock.Anything, "404").Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "Payout with ID '404' not found", nil))

	var body map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/payouts/404", Response: &body})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, body["error"], "not found")
}

func TestSyncPayouts_Inline(t *testing.T) {
	router, s, ds := setupRouter(t, nil)
	feed := &mocks.MockFeed{}
	s.SetFeedOpener(func(cfg *config.Configuration) (settlr.FeedSession, error) {
		return feed, nil
	})

	feed.On("ListPayouts", mock.Anything, mock.MatchedBy(func(f model.PayoutFilter) bool {
		return f.Status == model.PayoutInTransit && f.DateMin != nil
	}), "").Return(model.PayoutPage{}, nil)
	feed.On("Close").Return(nil)
	ds.On("GetSubmittedPayoutIDs", mock.Anything, []string{}).Return(map[string]bool{}, nil)
	ds.On("SetLastSyncAt", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var result settlr.SyncResult
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/payouts/sync",
		Payload:  bytes.NewBufferString(`{"status":"in_transit","date_min":"2024-03-01"}`),
		Response: &result,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, result.Synced)
	feed.AssertExpectations(t)
}

func TestSyncPayouts_InvalidBody(t *testing.T) {
	queue := &fakeQueue{}
	router, _, _ := setupRouter(t, queue)

	resp, err := SetUpTestRequest(TestRequest{
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/payouts/sync",
		Payload: bytes.NewBufferString(`{"status":"settled"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, queue.syncs)
}

func TestSyncPayouts_Queued(t *testing.T) {
	queue := &fakeQueue{}
	router, _, _ := setupRouter(t, queue)

	var body map[string]string
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: "/payouts/sync", Response: &body})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, "sync-task", body["task_id"])
	require.Len(t, queue.syncs, 1)
	assert.Equal(t, model.PayoutFilter{}, queue.syncs[0])
}

func TestSubmitPayout_Queued(t *testing.T) {
	queue := &fakeQueue{}
	router, _, _ := setupRouter(t, queue)

	var body map[string]string
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: "/payouts/1001/submit", Response: &body})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, "submit_1001", body["task_id"])
	assert.Equal(t, []string{"1001"}, queue.submits)

	queue.err = apierror.NewAPIError(apierror.ErrConflict, "payout 1001 is already queued for submission", nil)
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: "/payouts/1001/submit"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestSubmitPayout_InlineAlreadySubmitted(t *testing.T) {
	router, s, ds := setupRouter(t, nil)
	feed := &mocks.MockFeed{}
	feed.On("Close").Return(nil)
	s.SetFeedOpener(func(cfg *config.Configuration) (settlr.FeedSession, error) {
		return feed, nil
	})
	ds.On("GetPayout", mock.Anything, "1001").Return(&model.Payout{PayoutID: "1001", Submitted: true}, nil)

	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: "/payouts/1001/submit"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	feed.AssertCalled(t, "Close")
}
