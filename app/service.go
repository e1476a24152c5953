package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/freightpool/absorb/config"
	"github.com/freightpool/absorb/core/allocator"
	"github.com/freightpool/absorb/core/handshake"
	corenotify "github.com/freightpool/absorb/core/notify"
	"github.com/freightpool/absorb/core/scanner"
	corestore "github.com/freightpool/absorb/core/store"
	"github.com/freightpool/absorb/infra/logger"
	"github.com/freightpool/absorb/infra/metrics"
	"github.com/freightpool/absorb/infra/notify"
	"github.com/freightpool/absorb/infra/store"
	"github.com/freightpool/absorb/internal/eventbus"
)

// Service wires the scanner, allocator and handshake orchestrator onto a
// shared store and notification transport.
type Service struct {
	Store     corestore.Store
	Scanner   *scanner.Scanner
	Allocator *allocator.Allocator
	Handshake *handshake.Orchestrator
	Bus       *eventbus.Bus

	log      logger.Logger
	mqtt     *notify.MQTTPublisher
	promPort int
	promOn   bool
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, err := newStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	svc := &Service{Store: st, log: logg}

	var pub corenotify.Publisher
	switch cfg.Notify.Backend {
	case "mqtt":
		client, err := notify.NewMQTTPublisher(cfg.Notify.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.mqtt = client
		pub = client
	default:
		svc.Bus = eventbus.New()
		pub = svc.Bus
	}

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc.promOn = cfg.Metrics.Sink == "prometheus" || cfg.Metrics.Sink == "multi"
	svc.promPort = cfg.Metrics.PrometheusPort

	svc.Scanner, err = scanner.New(st, pub, cfg.Scanner, logger.New("scanner"), sink)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	svc.Allocator, err = allocator.New(st, nil, cfg.Allocator, logger.New("allocator"), sink)
	if err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}
	svc.Handshake, err = handshake.New(st, pub, cfg.Handshake, logger.New("handshake"), sink)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return svc, nil
}

func newStore(cfg config.StoreConfig) (corestore.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path)
	default:
		return store.NewMemoryStore(), nil
	}
}

// Run starts the scan loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promOn {
		go func() {
			addr := ":" + strconv.Itoa(s.promPort)
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.Scanner.Run(ctx)
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
	return s.Store.Close()
}
