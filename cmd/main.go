package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	server "github.com/auraspeak/rendezvous"
	"github.com/auraspeak/rendezvous/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.WithField("caller", "main").WithError(err).Fatal("Server exited")
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("rendezvous", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", config.DefaultPath, "path to the YAML config file")
	port := flags.StringP("port", "p", "", "listen port (overrides server.port and PORT)")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn, error (overrides server.log_level)")
	logJSON := flags.Bool("log-json", false, "emit logs as JSON")
	setup := flags.Bool("setup", false, "run the interactive setup and write the config file")
	writeDefault := flags.Bool("write-default-config", false, "write the default config to --config and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *writeDefault {
		if err := config.WriteDefaultConfig(*configPath); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		log.WithField("caller", "main").Infof("Wrote default config to %s", *configPath)
		return nil
	}

	if *logJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}

	var cfg *config.Config
	var err error
	if *setup {
		cfg, err = config.Setup(*configPath, os.Stdin, os.Stdout)
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		return err
	}

	if *port != "" {
		cfg.Server.Port = *port
	}
	level := cfg.Server.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if err := setLogLevel(level); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return srv.Run()
}

func setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	return nil
}
