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

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/settlr/model"
)

func TestValidateSyncPayouts(t *testing.T) {
	tests := []struct {
		name    string
		req     SyncPayouts
		wantErr bool
	}{
		{name: "Empty", req: SyncPayouts{}},
		{name: "Status and date", req: SyncPayouts{Status: "paid", DateMin: "2024-03-01"}},
		{name: "Unknown status", req: SyncPayouts{Status: "settled"}, wantErr: true},
		{name: "Bad date", req: SyncPayouts{DateMin: "03/01/2024"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.ValidateSyncPayouts()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSyncPayoutsToFilter(t *testing.T) {
	req := SyncPayouts{Status: "in_transit", DateMin: "2024-03-01"}
	filter := req.ToFilter()
	assert.Equal(t, model.PayoutInTransit, filter.Status)
	require.NotNil(t, filter.DateMin)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *filter.DateMin)

	empty := SyncPayouts{}
	assert.Nil(t, empty.ToFilter().DateMin)
}

func TestParsePagination(t *testing.T) {
	p, err := ParsePagination("", "")
	require.NoError(t, err)
	assert.Equal(t, Pagination{Limit: DefaultPageLimit}, p)

	p, err = ParsePagination("50", "100")
	require.NoError(t, err)
	assert.Equal(t, Pagination{Limit: 50, Offset: 100}, p)

	_, err = ParsePagination("abc", "")
	assert.Error(t, err)

	_, err = ParsePagination("0", "")
	assert.Error(t, err)

	_, err = ParsePagination("500", "")
	assert.Error(t, err)

	_, err = ParsePagination("10", "-1")
	assert.Error(t, err)
}
