// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/pressure_pads/internal/app"
	"github.com/relabs-tech/pressure_pads/internal/config"
	"github.com/relabs-tech/pressure_pads/internal/serialsrc"
)

func main() {
	configPath := flag.String("config", "./pressure_pads_config.txt", "path to configuration file")
	port := flag.String("port", serialsrc.MockPort, "serial port, or \"mock\" for the synthetic source")
	baud := flag.Int("baud", serialsrc.DefaultBaud, "baud rate")
	raw := flag.Bool("raw", false, "print parsed records only, without mapping or calibration")
	flag.Parse()

	log.Println("starting pressure-pads console")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	run := app.RunConsole
	if *raw {
		run = app.RunRawConsole
	}
	if err := run(*port, *baud); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
