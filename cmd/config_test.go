package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/settlr/config"
)

func TestRedactConfig(t *testing.T) {
	cfg := config.Configuration{
		Server:   config.ServerConfig{SecretKey: "secret", Port: "5004"},
		Platform: config.PlatformConfig{ShopURL: "https://shop.example.com", AccessToken: "token"},
		ERP:      config.ERPConfig{Url: "https://erp.example.com", ApiKey: "key", ApiSecret: ""},
	}

	out := redactConfig(cfg)

	assert.Equal(t, redacted, out.Server.SecretKey)
	assert.Equal(t, redacted, out.Platform.AccessToken)
	assert.Equal(t, redacted, out.ERP.ApiKey)
	assert.Empty(t, out.ERP.ApiSecret)
	assert.Equal(t, "https://shop.example.com", out.Platform.ShopURL)
	assert.Equal(t, "secret", cfg.Server.SecretKey)
}

func TestInitializeQueues(t *testing.T) {
	cfg := &config.Configuration{Queue: config.QueueConfig{SyncQueue: "payout:sync", SubmitQueue: "payout:submit"}}

	queues := initializeQueues(cfg)

	assert.Equal(t, map[string]int{"payout:sync": 1, "payout:submit": 3}, queues)
}

func TestInitializeQueue_WithoutRedis(t *testing.T) {
	queue, err := initializeQueue(&config.Configuration{})
	assert.NoError(t, err)
	assert.Nil(t, queue)
}

func TestNewCLI_Commands(t *testing.T) {
	cli := NewCLI()

	var names []string
	for _, c := range cli.cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"start", "workers", "sync", "submit", "payouts", "migrate", "config"})
}
