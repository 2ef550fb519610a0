package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/pillbox2mqtt/internal/adapter/actor"
	"github.com/berfenger/pillbox2mqtt/internal/alarm"
	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/core/actor"
	"github.com/berfenger/pillbox2mqtt/internal/discovery"
	"github.com/berfenger/pillbox2mqtt/internal/medication"
	"github.com/berfenger/pillbox2mqtt/internal/server"
	"github.com/berfenger/pillbox2mqtt/internal/util/actorutil"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// shared by the actors and the websocket hub
	es := &eventstream.EventStream{}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, es, deviceActorProvider(cfg, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	var browser discovery.Browser
	if cfg.Discovery.Enable {
		browser = discovery.NewZeroconfBrowser(cfg.Discovery, logger)
	}

	hub := server.NewHub(es, logger)
	server := server.NewServer(*cfg, server.Deps{
		RootContext: ctx,
		MasterActor: pid,
		Hub:         hub,
		Alarms:      alarm.NewStore(afero.NewOsFs(), cfg.Alarms.File, logger),
		Medications: medication.NewStore(afero.NewOsFs(), cfg.Medications.File, logger),
		Browser:     browser,
		Logger:      logger,
	})
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	hub.Close()
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => PILLBOX_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("PILLBOX_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("pillbox")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func deviceActorProvider(cfg *config.Config, logger *zap.Logger) actor.DeviceActorProvider {
	return func(es *eventstream.EventStream) *adactor.DeviceActor {
		// a fresh client per incarnation, restarts start from Disconnected
		client := pillbox.CreateHTTPDeviceClient(cfg.Device.Host, cfg.Device.Timeout(), nil, logger, nil)
		return adactor.NewDeviceActor(cfg, client, es, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("device.host", pillbox.DefaultDeviceAddress)
	viper.SetDefault("device.timeout_millis", 5000)
	viper.SetDefault("device.poll_interval_millis", 10000)
	viper.SetDefault("device.slots", 6)
	viper.SetDefault("device.require_connection", false)
	viper.SetDefault("mqtt.enable", true)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "pillbox")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("discovery.enable", false)
	viper.SetDefault("discovery.service", "_http._tcp")
	viper.SetDefault("discovery.domain", "local.")
	viper.SetDefault("discovery.timeout_millis", 3000)
	viper.SetDefault("discovery.instance_prefix", "pillbox")
	viper.SetDefault("alarms.file", "alarms.json")
	viper.SetDefault("alarms.timezone", "Local")
	viper.SetDefault("medications.file", "medications.json")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
