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
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/blnkfinance/settlr/model"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SyncPayouts is the body of a sync request. Both fields are optional.
type SyncPayouts struct {
	Status  string `json:"status"`
	DateMin string `json:"date_min"`
}

func (s *SyncPayouts) ValidateSyncPayouts() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Status, validation.In(
			string(model.PayoutPending), string(model.PayoutInTransit), string(model.PayoutPaid), string(model.PayoutFailed),
		)),
		validation.Field(&s.DateMin, validation.Date("2006-01-02")),
	)
}

// ToFilter converts a validated request into a payout filter.
func (s *SyncPayouts) ToFilter() model.PayoutFilter {
	filter := model.PayoutFilter{Status: model.PayoutStatus(s.Status)}
	if s.DateMin != "" {
		if t, err := time.Parse("2006-01-02", s.DateMin); err == nil {
			filter.DateMin = &t
		}
	}
	return filter
}

// Pagination holds the limit and offset of a list request.
type Pagination struct {
	Limit  int
	Offset int
}

func (p *Pagination) ValidatePagination() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Limit, validation.Required, validation.Min(1), validation.Max(MaxPageLimit)),
		validation.Field(&p.Offset, validation.Min(0)),
	)
}

// ParsePagination reads limit and offset query values, defaulting the ones not given.
func ParsePagination(limit, offset string) (Pagination, error) {
	p := Pagination{Limit: DefaultPageLimit}
	var err error
	if limit != "" {
		if p.Limit, err = strconv.Atoi(limit); err != nil {
			return p, validation.Errors{"limit": validation.NewError("validation_is_int", "must be an integer")}
		}
	}
	if offset != "" {
		if p.Offset, err = strconv.Atoi(offset); err != nil {
			return p, validation.Errors{"offset": validation.NewError("validation_is_int", "must be an integer")}
		}
	}
	return p, p.ValidatePagination()
}
