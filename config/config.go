// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path" validate:"required"`

	// Provider credentials and endpoint
	ProviderProjectID string `mapstructure:"provider_project_id" validate:"required"`
	ProviderAuthToken string `mapstructure:"provider_auth_token" validate:"required"`
	ProviderSpaceURL  string `mapstructure:"provider_space_url" validate:"required,url"`

	// Provider shape: "native" recordings carry formatted numbers themselves,
	// "url" requires a per-recording call lookup.
	ProviderVariant string `mapstructure:"provider_variant" validate:"required,oneof=native url"`

	// Delivery
	WebhookURL     string `mapstructure:"webhook_url" validate:"required,url"`
	WebhookTimeout int    `mapstructure:"webhook_timeout" validate:"required,min=1"`

	// Poll loop
	PollInterval int `mapstructure:"poll_interval" validate:"required,min=1"`
	HTTPTimeout  int `mapstructure:"http_timeout" validate:"required,min=1"`

	EmbedAudio          bool `mapstructure:"embed_audio"`
	FetchTranscriptions bool `mapstructure:"fetch_transcriptions"`

	// Optional health/status listener, disabled when empty.
	HealthAddr string `mapstructure:"health_addr"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	//
	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "vcon-bridge")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", ".")

	// provider credentials are env-only; register the keys so viper
	// carries them through Unmarshal
	v.SetDefault("PROVIDER_PROJECT_ID", "")
	v.SetDefault("PROVIDER_AUTH_TOKEN", "")
	v.SetDefault("PROVIDER_SPACE_URL", "")
	v.SetDefault("PROVIDER_VARIANT", "url")

	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_TIMEOUT", 10)

	v.SetDefault("POLL_INTERVAL", 300)
	v.SetDefault("HTTP_TIMEOUT", 30)

	v.SetDefault("EMBED_AUDIO", true)
	v.SetDefault("FETCH_TRANSCRIPTIONS", true)

	v.SetDefault("HEALTH_ADDR", "")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// a space url configured without a scheme is still a valid endpoint
	if config.ProviderSpaceURL != "" && !strings.Contains(config.ProviderSpaceURL, "://") {
		config.ProviderSpaceURL = "https://" + config.ProviderSpaceURL
	}
	config.ProviderSpaceURL = strings.TrimRight(config.ProviderSpaceURL, "/")

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		return nil, namedValidationError(err)
	}
	return &config, nil
}

// namedValidationError rewrites validator failures so the diagnostic names
// the environment variable the operator has to fix.
func namedValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := envNames()
	missing := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		name, ok := fields[fieldErr.StructField()]
		if !ok {
			name = fieldErr.StructField()
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", name, fieldErr.Tag()))
	}
	return fmt.Errorf("illegal configuration: %s", strings.Join(missing, ", "))
}

func envNames() map[string]string {
	return map[string]string{
		"Name":                "SERVICE_NAME",
		"LogLevel":            "LOG_LEVEL",
		"LogPath":             "LOG_PATH",
		"ProviderProjectID":   "PROVIDER_PROJECT_ID",
		"ProviderAuthToken":   "PROVIDER_AUTH_TOKEN",
		"ProviderSpaceURL":    "PROVIDER_SPACE_URL",
		"ProviderVariant":     "PROVIDER_VARIANT",
		"WebhookURL":          "WEBHOOK_URL",
		"WebhookTimeout":      "WEBHOOK_TIMEOUT",
		"PollInterval":        "POLL_INTERVAL",
		"HTTPTimeout":         "HTTP_TIMEOUT",
		"HealthAddr":          "HEALTH_ADDR",
		"EmbedAudio":          "EMBED_AUDIO",
		"FetchTranscriptions": "FETCH_TRANSCRIPTIONS",
	}
}
