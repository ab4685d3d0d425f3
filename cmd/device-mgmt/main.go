package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fitband/device-mgmt/internal/pkg/application/auth"
	"github.com/fitband/device-mgmt/internal/pkg/application/devicemanagement"
	"github.com/fitband/device-mgmt/internal/pkg/application/sessiontracker"
	"github.com/fitband/device-mgmt/internal/pkg/application/telemetry"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/router"
	"github.com/fitband/device-mgmt/internal/pkg/presentation/api"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const serviceName string = "device-mgmt"

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort
	configurationFile
	devmode
)

func defaultFlags() flagMap {
	return flagMap{
		listenAddress:     "0.0.0.0",
		servicePort:       "8080",
		configurationFile: "/opt/fitband/config/config.yaml",
		devmode:           "false",
	}
}

// appConfig holds the service level settings that are not connection
// related. Token time to live is a duration string ("24h") since the
// yaml decoder has no native duration support.
type appConfig struct {
	Auth struct {
		TokenSecret string `yaml:"tokenSecret"`
		TokenTTL    string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Cors struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

func defaultAppConfig() *appConfig {
	cfg := &appConfig{}
	cfg.Auth.TokenSecret = os.Getenv("TOKEN_SECRET")
	cfg.Auth.TokenTTL = "24h"
	return cfg
}

func main() {
	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", strings.ToLower(serviceName)).
		Str("version", version()).
		Logger()
	ctx = logger.WithContext(ctx)

	cfg := defaultAppConfig()

	if cfgFile, err := os.Open(flags[configurationFile]); err == nil {
		cfg, err = parseExternalConfigFile(cfgFile)
		exitIf(err, logger, "could not parse configuration file")
	} else if flags[devmode] != "true" {
		exitIf(err, logger, "could not open configuration file")
	}

	authCfg, err := newAuthConfig(cfg)
	exitIf(err, logger, "invalid auth configuration")

	var connect database.ConnectorFunc
	if flags[devmode] == "true" {
		connect = database.NewSQLiteConnector(ctx)
	} else {
		connect = database.NewPostgreSQLConnector(ctx, database.LoadConfigFromEnv())
	}

	userRepository, err := database.NewUserRepository(connect)
	exitIf(err, logger, "could not create user repository")

	deviceRepository, err := database.NewDeviceRepository(connect)
	exitIf(err, logger, "could not create device repository")

	sessionRepository, err := database.NewSessionRepository(connect)
	exitIf(err, logger, "could not create session repository")

	telemetryRepository, err := database.NewTelemetryRepository(connect)
	exitIf(err, logger, "could not create telemetry repository")

	authSvc := auth.New(userRepository, deviceRepository, authCfg)
	deviceSvc := devicemanagement.New(deviceRepository)
	sessionSvc := sessiontracker.New(sessionRepository, deviceRepository)
	telemetrySvc := telemetry.New(telemetryRepository, deviceRepository, sessionRepository)

	r := router.New(serviceName, cfg.Cors.AllowedOrigins...)
	api.RegisterHandlers(logger, r, authSvc, deviceSvc, sessionSvc, telemetrySvc)

	apiPort := flags[listenAddress] + ":" + flags[servicePort]
	logger.Info().Str("port", flags[servicePort]).Msg("starting to listen for connections")

	err = http.ListenAndServe(apiPort, r)
	exitIf(err, logger, "failed to start request router")
}

func newAuthConfig(cfg *appConfig) (*auth.Config, error) {
	ttl, err := time.ParseDuration(cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		secret = "insecure-dev-secret"
	}

	return &auth.Config{
		TokenSecret: secret,
		TokenTTL:    ttl,
	}, nil
}

func parseExternalConfigFile(cfgFile io.ReadCloser) (*appConfig, error) {
	defer cfgFile.Close()

	b, err := io.ReadAll(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg := defaultAppConfig()
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseExternalConfig(ctx context.Context, flags flagMap) (context.Context, flagMap) {
	// Allow environment variables to override certain defaults
	envOrDef := func(key, def string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return def
	}

	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef("SERVICE_PORT", flags[servicePort])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "service configuration file", apply(configurationFile))
	flag.Func("devmode", "run against an in-memory database", apply(devmode))
	flag.Parse()

	return ctx, flags
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Fatal().Err(err).Msg(msg)
	}
}
