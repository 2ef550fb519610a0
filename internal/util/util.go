package util

import (
	"github.com/berfenger/pillbox2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Device: config.DeviceConfig{
			Host:               "-.-.-.-",
			TimeoutMillis:      500,
			PollIntervalMillis: 1000,
			Slots:              6,
		},
		MQTT: config.MQTTConfig{
			Enable:           true,
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "pillbox",
			HADiscoveryTopic: "homeassistant",
		},
		Discovery: config.DiscoveryConfig{
			Enable:         false,
			Service:        "_http._tcp",
			Domain:         "local.",
			TimeoutMillis:  1000,
			InstancePrefix: "pillbox",
		},
		Alarms: config.AlarmsConfig{
			File:     "alarms.json",
			Timezone: "UTC",
		},
		Medications: config.MedicationsConfig{
			File: "medications.json",
		},
		Port: 8080,
	}
}
