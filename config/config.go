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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT        = "5004"
	DEFAULT_API_VERSION = "2024-01"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"SETTLR_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SETTLR_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"SETTLR_SERVER_PORT"`
	SSL       bool   `json:"ssl" envconfig:"SETTLR_SERVER_SSL"`
	Domain    string `json:"domain" envconfig:"SETTLR_SERVER_DOMAIN"`
	Email     string `json:"email" envconfig:"SETTLR_SERVER_EMAIL"`
	CertDir   string `json:"cert_dir" envconfig:"SETTLR_SERVER_CERT_DIR"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SETTLR_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"SETTLR_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"SETTLR_REDIS_SKIP_TLS_VERIFY"`
}

// PlatformConfig holds the credentials and call limits for the commerce platform feed.
type PlatformConfig struct {
	ShopURL        string `json:"shop_url" envconfig:"SETTLR_PLATFORM_SHOP_URL"`
	AccessToken    string `json:"access_token" envconfig:"SETTLR_PLATFORM_ACCESS_TOKEN"`
	APIVersion     string `json:"api_version" envconfig:"SETTLR_PLATFORM_API_VERSION"`
	TimeoutSeconds int    `json:"timeout_seconds" envconfig:"SETTLR_PLATFORM_TIMEOUT_SECONDS"`
	MaxRetries     int    `json:"max_retries" envconfig:"SETTLR_PLATFORM_MAX_RETRIES"`
	PayoutStatus   string `json:"payout_status" envconfig:"SETTLR_PLATFORM_PAYOUT_STATUS"`
	PageSize       int    `json:"page_size" envconfig:"SETTLR_PLATFORM_PAGE_SIZE"`
}

// ERPConfig holds the credentials of the ERP the documents and journals live in.
type ERPConfig struct {
	Url            string `json:"url" envconfig:"SETTLR_ERP_URL"`
	ApiKey         string `json:"api_key" envconfig:"SETTLR_ERP_API_KEY"`
	ApiSecret      string `json:"api_secret" envconfig:"SETTLR_ERP_API_SECRET"`
	TimeoutSeconds int    `json:"timeout_seconds" envconfig:"SETTLR_ERP_TIMEOUT_SECONDS"`
}

// LedgerConfig names the company and the fallback accounts used when posting.
type LedgerConfig struct {
	Company       string `json:"company" envconfig:"SETTLR_LEDGER_COMPANY"`
	PayoutAccount string `json:"payout_account" envconfig:"SETTLR_LEDGER_PAYOUT_ACCOUNT"`
	FeeAccount    string `json:"fee_account" envconfig:"SETTLR_LEDGER_FEE_ACCOUNT"`
	CostCenter    string `json:"cost_center" envconfig:"SETTLR_LEDGER_COST_CENTER"`
}

type SyncConfig struct {
	Schedule             string `json:"schedule" envconfig:"SETTLR_SYNC_SCHEDULE"`
	OrderCacheTTLSeconds int    `json:"order_cache_ttl_seconds" envconfig:"SETTLR_SYNC_ORDER_CACHE_TTL_SECONDS"`
	LockTimeoutSeconds   int    `json:"lock_timeout_seconds" envconfig:"SETTLR_SYNC_LOCK_TIMEOUT_SECONDS"`
}

type QueueConfig struct {
	SyncQueue      string `json:"sync_queue" envconfig:"SETTLR_QUEUE_SYNC"`
	SubmitQueue    string `json:"submit_queue" envconfig:"SETTLR_QUEUE_SUBMIT"`
	Concurrency    int    `json:"concurrency" envconfig:"SETTLR_QUEUE_CONCURRENCY"`
	MonitoringPort string `json:"monitoring_port" envconfig:"SETTLR_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"SETTLR_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"SETTLR_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"SETTLR_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"SETTLR_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

// TelemetryConfig configures the heartbeat sent while telemetry is enabled.
type TelemetryConfig struct {
	PosthogKey      string `json:"posthog_key" envconfig:"SETTLR_TELEMETRY_POSTHOG_KEY"`
	PosthogEndpoint string `json:"posthog_endpoint" envconfig:"SETTLR_TELEMETRY_POSTHOG_ENDPOINT"`
	LogLevel        string `json:"log_level" envconfig:"SETTLR_TELEMETRY_LOG_LEVEL"`
	ElasticAPM      bool   `json:"elastic_apm" envconfig:"SETTLR_TELEMETRY_ELASTIC_APM"`
}

type Configuration struct {
	ProjectName     string            `json:"project_name" envconfig:"SETTLR_PROJECT_NAME"`
	EnableTelemetry bool              `json:"enable_telemetry" envconfig:"SETTLR_ENABLE_TELEMETRY"`
	Server          ServerConfig      `json:"server"`
	DataSource      DataSourceConfig  `json:"data_source"`
	Redis           RedisConfig       `json:"redis"`
	Platform        PlatformConfig    `json:"platform"`
	ERP             ERPConfig         `json:"erp"`
	Ledger          LedgerConfig      `json:"ledger"`
	AccountMapping  map[string]string `json:"account_mapping"`
	Sync            SyncConfig        `json:"sync"`
	Queue           QueueConfig       `json:"queue"`
	Notification    Notification      `json:"notification"`
	RateLimit       RateLimitConfig   `json:"rate_limit"`
	Telemetry       TelemetryConfig   `json:"telemetry"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("settlr", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

// Fetch returns the configuration loaded by InitConfig. Only the CLI layer reads it this
// way; every service receives the configuration explicitly.
func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called settlr.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Settlr"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Platform.ShopURL = strings.TrimRight(strings.TrimSpace(cnf.Platform.ShopURL), "/")
	cnf.ERP.Url = strings.TrimRight(strings.TrimSpace(cnf.ERP.Url), "/")

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Platform.ShopURL == "" || cnf.Platform.AccessToken == "" {
		log.Println("Error: Platform shop url or access token is empty. Both are required.")
		return errors.New("platform shop url and access token are required")
	}

	if cnf.ERP.Url == "" {
		log.Println("Error: ERP url is empty. It's a required field.")
		return errors.New("erp url is required")
	}

	if cnf.Ledger.Company == "" || cnf.Ledger.PayoutAccount == "" {
		log.Println("Error: Ledger company or payout account is empty. Both are required.")
		return errors.New("ledger company and payout account are required")
	}

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Platform.APIVersion == "" {
		cnf.Platform.APIVersion = DEFAULT_API_VERSION
	}
	if cnf.Platform.TimeoutSeconds <= 0 {
		cnf.Platform.TimeoutSeconds = 30
	}
	if cnf.Platform.MaxRetries < 0 {
		cnf.Platform.MaxRetries = 0
	}
	if cnf.Platform.PayoutStatus == "" {
		cnf.Platform.PayoutStatus = "paid"
	}
	if cnf.Platform.PageSize <= 0 || cnf.Platform.PageSize > 250 {
		cnf.Platform.PageSize = 50
	}
	if cnf.ERP.TimeoutSeconds <= 0 {
		cnf.ERP.TimeoutSeconds = 30
	}

	if cnf.Sync.Schedule == "" {
		cnf.Sync.Schedule = "@every 1h"
	}
	if cnf.Sync.OrderCacheTTLSeconds <= 0 {
		cnf.Sync.OrderCacheTTLSeconds = 300
	}
	if cnf.Sync.LockTimeoutSeconds <= 0 {
		cnf.Sync.LockTimeoutSeconds = 1800
	}

	if cnf.Queue.SyncQueue == "" {
		cnf.Queue.SyncQueue = "payout:sync"
	}
	if cnf.Queue.SubmitQueue == "" {
		cnf.Queue.SubmitQueue = "payout:submit"
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 2
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5005"
	}

	if cnf.Server.SSL && cnf.Server.CertDir == "" {
		cnf.Server.CertDir = "./certmagic"
	}
	if cnf.Telemetry.PosthogEndpoint == "" {
		cnf.Telemetry.PosthogEndpoint = "https://us.i.posthog.com"
	}
	if cnf.Telemetry.LogLevel == "" {
		cnf.Telemetry.LogLevel = "info"
	}

	if cnf.AccountMapping == nil {
		cnf.AccountMapping = map[string]string{}
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// PlatformTimeout is the bound placed on a single platform call.
func (cnf *Configuration) PlatformTimeout() time.Duration {
	return time.Duration(cnf.Platform.TimeoutSeconds) * time.Second
}

func (cnf *Configuration) ERPTimeout() time.Duration {
	return time.Duration(cnf.ERP.TimeoutSeconds) * time.Second
}

func (cnf *Configuration) OrderCacheTTL() time.Duration {
	return time.Duration(cnf.Sync.OrderCacheTTLSeconds) * time.Second
}

func (cnf *Configuration) LockTimeout() time.Duration {
	return time.Duration(cnf.Sync.LockTimeoutSeconds) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
