// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/pressure_pads/internal/app"
	"github.com/relabs-tech/pressure_pads/internal/config"
)

func main() {
	configPath := flag.String("config", "./pressure_pads_config.txt", "path to configuration file")
	port := flag.String("port", "", "serial port to connect at startup (overrides SERIAL_PORT)")
	baud := flag.Int("baud", 0, "baud rate (overrides SERIAL_BAUD_RATE)")
	mock := flag.Bool("mock", false, "stream the synthetic source instead of a serial port")
	flag.Parse()

	log.Println("starting pressure-pads heat-map server")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.SerialPort = *port
			cfg.SerialAutoconnect = true
		case "baud":
			cfg.SerialBaudRate = *baud
		case "mock":
			cfg.MockSource = *mock
		}
	})

	if err := app.RunServer(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
