package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vaultd-labs/vaultd/internal/config"
	"github.com/vaultd-labs/vaultd/internal/interface/web"
)

// Version is set at build time.
var Version = "dev"

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "vaultd"
	app.Usage = "time-delayed vault policy daemon"
	app.Flags = config.Flags
	app.Action = start

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func start(c *cli.Context) error {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	log.Infof("vaultd config: %s", cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	appSvc, err := cfg.AppService()
	if err != nil {
		return fmt.Errorf("failed to create app service: %s", err)
	}
	if err := appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}

	webSvc, err := web.NewService(web.Config{
		Address: fmt.Sprintf(":%d", cfg.Port),
		AppSvc:  appSvc,
	})
	if err != nil {
		return fmt.Errorf("failed to create web service: %s", err)
	}
	if err := webSvc.Start(); err != nil {
		return fmt.Errorf("failed to start web service: %s", err)
	}

	log.RegisterExitHandler(func() {
		webSvc.Stop()
		appSvc.Stop()
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)

	return nil
}
