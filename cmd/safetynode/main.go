package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/bus"
	_ "github.com/samsamfire/goopensafety/pkg/bus/socketcan"
	_ "github.com/samsamfire/goopensafety/pkg/bus/virtual"
	"github.com/samsamfire/goopensafety/pkg/config"
	"github.com/samsamfire/goopensafety/pkg/node"
	"github.com/samsamfire/goopensafety/pkg/sod"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Command line arguments
	configPath := flag.String("c", "", "yaml configuration file, defaults are used if empty")
	logLevel := flag.String("l", "", "log level e.g. debug,info,warn, overrides configuration")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load configuration : %v", err)
		}
		if err := loaded.Validate(); err != nil {
			log.Fatalf("%v", err)
		}
		loaded.Normalize()
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.Node.LogLevel = *logLevel
	}
	level, err := log.ParseLevel(cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.SetLevel(level)

	// Load the SOD, embedded default one if no file given
	odict := sod.Default()
	if cfg.Node.Sod != "" {
		odict, err = sod.Parse(cfg.Node.Sod)
		if err != nil {
			log.Fatalf("failed to parse SOD %v : %v", cfg.Node.Sod, err)
		}
	}

	b, err := bus.NewBus(cfg.Bus.Interface, cfg.Bus.Channel)
	if err != nil {
		log.Fatalf("failed to create bus : %v, available : %v", err, bus.Interfaces())
	}
	bm := opensafety.NewBusManager(b)
	if err := b.Subscribe(bm); err != nil {
		log.Fatalf("failed to subscribe : %v", err)
	}
	if err := b.Connect(); err != nil {
		log.Fatalf("failed to connect to %v %v : %v", cfg.Bus.Interface, cfg.Bus.Channel, err)
	}
	defer b.Disconnect()

	n, err := node.NewNode(bm, odict, cfg, nil)
	if err != nil {
		log.Fatalf("failed to create node : %v", err)
	}
	rx, tx, err := n.Configurator().ReadConfigurationAllSpdo()
	if err != nil {
		log.Fatalf("failed to read SPDO configuration : %v", err)
	}
	log.Infof("starting safety node, %v rx spdo, %v tx spdo", len(rx), len(tx))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := n.Run(ctx); err != nil {
		log.Errorf("node stopped : %v", err)
	}
	sent, immediate, sendErrors := n.Counters()
	log.Infof("exiting, sent %v frames (%v immediate, %v errors), dropped %v", sent, immediate, sendErrors, n.Dropped())
}
