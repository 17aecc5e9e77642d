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

package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/settlr/config"
)

// KeyHeader carries the operator secret on every API call.
const KeyHeader = "X-Settlr-Key"

const defaultLimiterTTL = time.Hour

// newLimiter returns nil when no rate or burst is configured.
func newLimiter(rl config.RateLimitConfig) *limiter.Limiter {
	if rl.RequestsPerSecond == nil || rl.Burst == nil {
		return nil
	}
	ttl := defaultLimiterTTL
	if rl.CleanupIntervalSec != nil {
		ttl = time.Duration(*rl.CleanupIntervalSec) * time.Second
	}
	return tollbooth.NewLimiter(*rl.RequestsPerSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: ttl}).
		SetBurst(*rl.Burst)
}

// RateLimit throttles operator calls per client address.
func RateLimit(conf *config.Configuration) gin.HandlerFunc {
	lmt := newLimiter(conf.RateLimit)
	return func(c *gin.Context) {
		if lmt == nil {
			c.Next()
			return
		}
		if limitErr := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); limitErr != nil {
			logrus.WithField("client_ip", c.ClientIP()).Warn("operator request throttled")
			c.AbortWithStatusJSON(limitErr.StatusCode, gin.H{"error": limitErr.Message})
			return
		}
		c.Next()
	}
}

// RequireSecretKey rejects operator calls whose KeyHeader does not match the configured key.
func RequireSecretKey(conf *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := conf.Server.SecretKey
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server secret key is not configured"})
			return
		}

		switch presented := c.GetHeader(KeyHeader); {
		case presented == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": KeyHeader + " header is required"})
		case subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1:
			logrus.WithFields(logrus.Fields{"client_ip": c.ClientIP(), "path": c.FullPath()}).Warn("rejected operator key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid " + KeyHeader})
		default:
			c.Next()
		}
	}
}
