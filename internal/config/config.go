package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel    zapcore.Level
	Device      DeviceConfig      `mapstructure:"device"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Alarms      AlarmsConfig      `mapstructure:"alarms"`
	Medications MedicationsConfig `mapstructure:"medications"`
	Port        uint              `mapstructure:"port"`
	HttpLog     bool              `mapstructure:"http_log"`
}

type DeviceConfig struct {
	Host               string
	TimeoutMillis      uint32 `mapstructure:"timeout_millis"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	Slots              uint   `mapstructure:"slots"`
	RequireConnection  bool   `mapstructure:"require_connection"`
}

func (c DeviceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c DeviceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type DiscoveryConfig struct {
	Enable         bool
	Service        string
	Domain         string
	TimeoutMillis  uint32 `mapstructure:"timeout_millis"`
	InstancePrefix string `mapstructure:"instance_prefix"`
}

func (c DiscoveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

type AlarmsConfig struct {
	File     string
	Timezone string
}

type MedicationsConfig struct {
	File string
}

var baseTopicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !baseTopicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks the bounds that viper cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.Host) == "" {
		return errors.New("config param device.host must not be empty")
	}
	// 0 means the firmware default of 5000 ms
	if c.Device.TimeoutMillis > 0 && (c.Device.TimeoutMillis < 100 || c.Device.TimeoutMillis > 60000) {
		return errors.New("config param device.timeout_millis should be 0 or between 100 and 60000")
	}
	if c.Device.PollIntervalMillis > 0 && c.Device.PollIntervalMillis < 1000 {
		return errors.New("config param device.poll_interval_millis should be 0 or >= 1000")
	}
	if c.Device.Slots < 1 || c.Device.Slots > 32 {
		return errors.New("config param device.slots should be between 1 and 32")
	}
	if c.Discovery.Enable && c.Discovery.TimeoutMillis < 500 {
		return errors.New("config param discovery.timeout_millis should be >= 500")
	}
	if _, err := time.LoadLocation(c.Alarms.Timezone); err != nil {
		return errors.New("config param alarms.timezone is not a valid location")
	}
	return nil
}
