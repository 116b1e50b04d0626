package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vaultd-labs/vaultd/internal/core/application"
)

type Config struct {
	Address string
	AppSvc  application.Service
}

func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("missing listen address")
	}
	if c.AppSvc == nil {
		return fmt.Errorf("missing app service")
	}
	return nil
}

type Service struct {
	config     Config
	httpServer *http.Server
}

func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	h := newHandler(config.AppSvc)
	httpServer := &http.Server{
		Addr:         config.Address,
		Handler:      h.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Service{config, httpServer}, nil
}

func (s *Service) Start() error {
	go func() {
		log.Infof("started listening at %s", s.config.Address)
		if err := s.httpServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server exited")
		}
	}()
	return nil
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nolint:errcheck
	s.httpServer.Shutdown(ctx)
	log.Info("stopped http server")
}
