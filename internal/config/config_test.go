package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "tscribe", cfg.Database.Database)
				assert.Equal(t, "tscribe.jobs", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "tscribe.jobs.transcribe", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, 2*time.Hour, cfg.Worker.JobTimeout)
				assert.Equal(t, []string{"de", "en"}, cfg.Pipeline.SubtitleLangs)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "yt-dlp", cfg.Pipeline.YtDlpPath)
	assert.Equal(t, "whisper-cli", cfg.Pipeline.WhisperPath)
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.CleanupMaxAge)
	assert.Equal(t, time.Hour, cfg.Pipeline.CleanupInterval)
}

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "tscribe",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "tscribe.jobs"},
			Queue:    QueueConfig{Name: "tscribe.jobs.transcribe"},
		},
		Worker: WorkerConfig{
			Concurrency:     1,
			JobTimeout:      2 * time.Hour,
			ShutdownTimeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			DataDir:         "/tmp/tscribe",
			WhisperProvider: "local",
			CleanupMaxAge:   24 * time.Hour,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "missing exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing data dir",
			mutate:    func(c *Config) { c.Pipeline.DataDir = "" },
			wantErr:   true,
			errString: "pipeline data_dir is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "job_timeout must be greater than 0",
		},
		{
			name:      "unknown whisper provider",
			mutate:    func(c *Config) { c.Pipeline.WhisperProvider = "azure" },
			wantErr:   true,
			errString: "whisper_provider must be",
		},
		{
			name: "openai provider without key",
			mutate: func(c *Config) {
				c.Pipeline.WhisperProvider = "openai"
				c.Pipeline.OpenAIAPIKey = ""
			},
			wantErr:   true,
			errString: "openai_api_key is required",
		},
		{
			name: "openai provider with key",
			mutate: func(c *Config) {
				c.Pipeline.WhisperProvider = "openai"
				c.Pipeline.OpenAIAPIKey = "sk-test"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
