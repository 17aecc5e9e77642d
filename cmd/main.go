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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/settlr"
	"github.com/blnkfinance/settlr/config"
	"github.com/blnkfinance/settlr/database"
	"github.com/blnkfinance/settlr/internal/erp"
	"github.com/blnkfinance/settlr/internal/notification"
	redis_db "github.com/blnkfinance/settlr/internal/redis-db"
)

// Settlr represents the CLI application, encapsulating the root Cobra command.
type Settlr struct {
	cmd *cobra.Command
}

// settlrInstance holds the services and configuration shared by every command.
type settlrInstance struct {
	settlr *settlr.Settlr
	redis  *redis_db.Redis
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires the reconciliation services before any command runs.
func preRun(app *settlrInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		if level, err := logrus.ParseLevel(cnf.Telemetry.LogLevel); err == nil {
			logrus.SetLevel(level)
		}

		// migrations connect on their own and must run before the schema exists
		if cmd.Name() == "config" || (cmd.HasParent() && cmd.Parent().Name() == "migrate") {
			app.cnf = cnf
			return nil
		}

		err = setupSettlr(app, cnf)
		if err != nil {
			notification.NewNotifier(cnf.Notification.Slack.WebhookUrl).NotifyError(err)
			log.Fatal(err)
		}
		return nil
	}
}

// setupSettlr connects the payout store, Redis and the ERP client and builds the service.
func setupSettlr(app *settlrInstance, cfg *config.Configuration) error {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return fmt.Errorf("error getting datasource: %v", err)
	}

	var rdb *redis_db.Redis
	if cfg.Redis.Dns != "" {
		rdb, err = redis_db.NewRedisClient(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
		if err != nil {
			return fmt.Errorf("error connecting to redis: %v", err)
		}
	} else {
		logrus.Warn("redis dns is empty, runs will not be locked and orders will not be cached")
	}

	app.redis = rdb
	app.cnf = cfg
	if rdb != nil {
		app.settlr = settlr.NewSettlr(cfg, db, erp.NewClient(cfg), rdb.Client())
	} else {
		app.settlr = settlr.NewSettlr(cfg, db, erp.NewClient(cfg), nil)
	}
	return nil
}

// NewCLI creates the command-line interface and registers every subcommand.
func NewCLI() *Settlr {
	var configFile string
	s := &settlrInstance{}

	var rootCmd = &cobra.Command{
		Use:   "settlr",
		Short: "Payout reconciliation for commerce platforms",
		Run:   func(cmd *cobra.Command, args []string) {},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.redis != nil {
				_ = s.redis.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./settlr.json", "Configuration file for settlr")
	rootCmd.PersistentPreRunE = preRun(s, &configFile)

	rootCmd.AddCommand(serverCommands(s))
	rootCmd.AddCommand(workerCommands(s))
	rootCmd.AddCommand(syncCommands(s))
	rootCmd.AddCommand(submitCommands(s))
	rootCmd.AddCommand(payoutCommands(s))
	rootCmd.AddCommand(migrateCommands(s))
	rootCmd.AddCommand(configCommands())

	return &Settlr{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Settlr) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
