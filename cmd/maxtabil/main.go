package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/app"
	"github.com/leadtunic/maxtabil-app-sub001/internal/config"
	"github.com/leadtunic/maxtabil-app-sub001/internal/logging"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/validation"
)

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional .env file loaded before the environment is read")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	tenantFlag := flag.String("tenant", "", "tenant override")
	author := flag.String("author", os.Getenv("USER"), "author recorded on published rule sets")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		fmt.Fprintln(flag.CommandLine.Output(), "\nflags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load %s\", \"error\": \"%v\"}\n", *envFile, err)
		os.Exit(1)
	}

	// A missing file is fine for the CLI: defaults and the environment apply
	conf, err := config.LoadConfigurationOrDefaults(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	tenant := conf.Tenant
	if *tenantFlag != "" {
		tenant = *tenantFlag
	}
	if err := validation.ValidateTenant(tenant); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	ctx := context.Background()
	services, err := app.Build(ctx, conf, nil, logger)
	if err != nil {
		logger.Fatal("failed to initialize services",
			zap.String("op", "main"),
			zap.String("storage", conf.Storage.Driver),
			zap.Error(err),
		)
	}

	cmd := &command{
		app:          services,
		tenant:       tenant,
		author:       *author,
		outputFormat: outputFormat,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
	}
	err = cmd.run(ctx, flag.Args())

	if closeErr := services.Close(); closeErr != nil {
		logger.Warn("failed to close connections",
			zap.String("op", "main"),
			zap.Error(closeErr),
		)
	}

	code := exitCode(err)
	if code == 1 {
		logger.Error("command failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if code != 0 {
		_ = logger.Sync()
		os.Exit(code)
	}
}
