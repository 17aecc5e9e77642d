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
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blnkfinance/settlr"
	"github.com/blnkfinance/settlr/api/middleware"
	"github.com/blnkfinance/settlr/model"
)

// TaskQueue runs syncs and submissions in the background.
type TaskQueue interface {
	EnqueueSync(ctx context.Context, filter model.PayoutFilter) (string, error)
	EnqueueSubmit(ctx context.Context, payoutID string) (string, error)
}

type Api struct {
	settlr *settlr.Settlr
	queue  TaskQueue
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/payouts", a.GetPayouts)
	router.GET("/payouts/:id", a.GetPayout)
	router.POST("/payouts/sync", a.SyncPayouts)
	router.POST("/payouts/:id/submit", a.SubmitPayout)
	return a.router
}

// NewAPI builds the operator API. When queue is nil, syncs and submissions run inside the request.
func NewAPI(s *settlr.Settlr, queue TaskQueue) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf := s.Config()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimit(conf))
	if conf.Server.Secure {
		r.Use(middleware.RequireSecretKey(conf))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{settlr: s, queue: queue, router: r}
}
