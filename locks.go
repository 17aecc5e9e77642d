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
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/settlr/internal/apierror"
	redlock "github.com/blnkfinance/settlr/internal/lock"
)

// acquire takes locker for the configured lock timeout. The returned release function
// is a no-op when no Redis client is configured.
func (s *Settlr) acquire(ctx context.Context, newLocker func() *redlock.Locker) (func(), *redlock.Locker, error) {
	if s.redis == nil {
		return func() {}, nil, nil
	}

	locker := newLocker()
	if err := locker.Lock(ctx, s.config.LockTimeout()); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("another run holds %s", locker.Key()), err)
		}
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to acquire run lock", err)
	}

	release := func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.WithField("lock", locker.Key()).WithError(err).Warn("failed to release run lock")
		}
	}
	return release, locker, nil
}

func (s *Settlr) syncLocker() *redlock.Locker {
	return redlock.NewSyncLocker(s.redis)
}

func (s *Settlr) submitLocker(payoutID string) func() *redlock.Locker {
	return func() *redlock.Locker {
		return redlock.NewSubmitLocker(s.redis, payoutID)
	}
}
