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

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/settlr/internal/apierror"
)

// GetLastSyncAt returns when the named sync last completed, or nil if it never has.
func (d Datasource) GetLastSyncAt(ctx context.Context, name string) (*time.Time, error) {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Fetching sync state")
	defer span.End()

	var at time.Time
	err := d.Conn.QueryRowContext(ctx, `SELECT last_sync_at FROM settlr.sync_state WHERE name = $1`, name).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sync state", err)
	}
	return &at, nil
}

func (d Datasource) SetLastSyncAt(ctx context.Context, name string, at time.Time) error {
	ctx, span := otel.Tracer("settlr.database").Start(ctx, "Saving sync state")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO settlr.sync_state (name, last_sync_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET last_sync_at = EXCLUDED.last_sync_at
	`, name, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save sync state", err)
	}
	return nil
}
