package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/blnkfinance/settlr/config"
)

const redacted = "********"

// redactConfig returns a copy of the configuration with credentials masked.
func redactConfig(cfg config.Configuration) config.Configuration {
	mask := func(v *string) {
		if *v != "" {
			*v = redacted
		}
	}
	mask(&cfg.Server.SecretKey)
	mask(&cfg.Platform.AccessToken)
	mask(&cfg.ERP.ApiKey)
	mask(&cfg.ERP.ApiSecret)
	mask(&cfg.Telemetry.PosthogKey)
	mask(&cfg.Notification.Slack.WebhookUrl)
	return cfg
}

func configCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the loaded configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			data, err := json.MarshalIndent(redactConfig(*cfg), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
