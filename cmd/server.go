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

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/settlr"
	"github.com/blnkfinance/settlr/api"
	"github.com/blnkfinance/settlr/config"
	trace "github.com/blnkfinance/settlr/internal/traces"
)

const heartbeatInterval = 5 * time.Minute

/*
serveTLS starts an HTTPS server with TLS enabled using CertMagic for automatic certificate management.
If no domain is specified, the server will default to running on localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: conf.CertDir}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// sendHeartbeat periodically reports that the process is alive until ctx is done.
func sendHeartbeat(ctx context.Context, client posthog.Client, heartbeatID, process string) {
	ticker := time.NewTicker(heartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := client.Enqueue(posthog.Capture{
					DistinctId: heartbeatID,
					Event:      "server_heartbeat",
					Properties: posthog.NewProperties().
						Set("process", process).
						Set("timestamp", time.Now().UTC()),
				}); err != nil {
					log.Printf("Failed to send heartbeat: %v", err)
				}
			}
		}
	}()
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	logrus.AddHook(trace.NewLogHook(cfg.ProjectName, logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel))
	return shutdown, nil
}

func initializePostHog(ctx context.Context, cfg *config.Configuration, process string) posthog.Client {
	if cfg.Telemetry.PosthogKey == "" {
		return nil
	}
	client, err := posthog.NewWithConfig(cfg.Telemetry.PosthogKey, posthog.Config{Endpoint: cfg.Telemetry.PosthogEndpoint})
	if err != nil {
		log.Printf("PostHog initialization error: %v", err)
		return nil
	}
	sendHeartbeat(ctx, client, uuid.New().String(), process)
	return client
}

// initializeObservability starts tracing and the heartbeat when telemetry is enabled. The
// returned shutdown function is never nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration, process string) (posthog.Client, func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return nil, func(context.Context) error { return nil }, nil
	}

	shutdown, err := initializeTracing(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	return initializePostHog(ctx, cfg, process), shutdown, nil
}

// initializeQueue connects the background queue. Without Redis the API runs work inline.
func initializeQueue(cfg *config.Configuration) (*settlr.Queue, error) {
	if cfg.Redis.Dns == "" {
		return nil, nil
	}
	return settlr.NewQueue(cfg)
}

func initializeRouter(s *settlrInstance, queue *settlr.Queue) *gin.Engine {
	if queue == nil {
		return api.NewAPI(s.settlr, nil).Router()
	}
	return api.NewAPI(s.settlr, queue).Router()
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

/*
serverCommands returns the Cobra command responsible for starting the Settlr API server.
It sets up the background queue, traces and heartbeat before launching the server.
*/
func serverCommands(s *settlrInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start settlr server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			phClient, shutdown, err := initializeObservability(ctx, s.cnf, "server")
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

			queue, err := initializeQueue(s.cnf)
			if err != nil {
				log.Fatal(err)
			}
			if queue != nil {
				defer queue.Close()
			}

			router := initializeRouter(s, queue)
			if err := startServer(router, s.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
