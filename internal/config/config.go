// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Serial
	SerialPort        string
	SerialBaudRate    int
	SerialAutoconnect bool
	MockSource        bool // use the synthetic source instead of SerialPort

	// Mapping persistence
	MappingFile string

	// Calibration gesture
	PressThresholdKPa float64
	HoldDurationMs    int

	// Web Server
	WebServerPort int
	WebRoot       string

	// MQTT (disabled when MQTTBroker is empty)
	MQTTBroker          string
	MQTTClientIDServer  string
	MQTTClientIDDisplay string
	MQTTClientIDConsole string

	// Topics
	TopicPads     string
	TopicBindings string
	TopicRate     string

	// Display
	DisplayI2CBus         string // "" picks the first bus
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: InitGlobal runs at most once.
//   - configMu: write lock for initialization, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no file sets a key.
func Default() *Config {
	return &Config{
		SerialBaudRate:        115200,
		MappingFile:           "padmap.json",
		PressThresholdKPa:     -100,
		HoldDurationMs:        2000,
		WebServerPort:         5000,
		WebRoot:               "web",
		MQTTClientIDServer:    "pressure-pads-server",
		MQTTClientIDDisplay:   "pressure-pads-display",
		MQTTClientIDConsole:   "pressure-pads-console",
		TopicPads:             "pads/frame",
		TopicBindings:         "pads/binding",
		TopicRate:             "pads/rate",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file on top of Default and returns it.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads configPath, or returns Default when the file does not exist.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(configPath)
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate
	case "SERIAL_AUTOCONNECT":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_AUTOCONNECT %q: %w", value, err)
		}
		c.SerialAutoconnect = b
	case "MOCK_SOURCE":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MOCK_SOURCE %q: %w", value, err)
		}
		c.MockSource = b

	// Mapping persistence
	case "MAPPING_FILE":
		c.MappingFile = value

	// Calibration gesture
	case "PRESS_THRESHOLD_KPA":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid PRESS_THRESHOLD_KPA %q: %w", value, err)
		}
		c.PressThresholdKPa = v
	case "HOLD_DURATION_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HOLD_DURATION_MS %q: %w", value, err)
		}
		c.HoldDurationMs = ms

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "WEB_ROOT":
		c.WebRoot = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SERVER":
		c.MQTTClientIDServer = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_PADS":
		c.TopicPads = value
	case "TOPIC_BINDINGS":
		c.TopicBindings = value
	case "TOPIC_RATE":
		c.TopicRate = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.SerialBaudRate {
	case 9600, 57600, 115200, 230400, 460800:
	default:
		return fmt.Errorf("SERIAL_BAUD_RATE must be one of 9600, 57600, 115200, 230400, 460800, got %d", c.SerialBaudRate)
	}
	if c.SerialAutoconnect && c.SerialPort == "" && !c.MockSource {
		return fmt.Errorf("SERIAL_AUTOCONNECT requires SERIAL_PORT or MOCK_SOURCE")
	}
	if c.MappingFile == "" {
		return fmt.Errorf("MAPPING_FILE is required")
	}
	if c.PressThresholdKPa >= 0 {
		return fmt.Errorf("PRESS_THRESHOLD_KPA must be negative, got %g", c.PressThresholdKPa)
	}
	if c.HoldDurationMs <= 0 {
		return fmt.Errorf("HOLD_DURATION_MS must be > 0, got %d", c.HoldDurationMs)
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.MQTTBroker != "" && (c.TopicPads == "" || c.TopicBindings == "" || c.TopicRate == "") {
		return fmt.Errorf("TOPIC_PADS, TOPIC_BINDINGS and TOPIC_RATE are required with MQTT_BROKER")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be > 0, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// HoldDuration returns HoldDurationMs as a duration.
func (c *Config) HoldDuration() time.Duration {
	return time.Duration(c.HoldDurationMs) * time.Millisecond
}

// ListenAddr is the web server address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.WebServerPort)
}

// InitGlobal initializes the global configuration from file, falling back to
// defaults when the file does not exist. Only the first call has an effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = LoadOrDefault(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
