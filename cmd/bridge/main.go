// The bridge daemon: discovers laboratory devices, ingests their
// telemetry into the rolling buffer, and serves the MCP tool-call
// endpoint plus the observation API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/silabio/sila2-bridge/internal/api"
	"github.com/silabio/sila2-bridge/internal/buffer"
	"github.com/silabio/sila2-bridge/internal/bus"
	"github.com/silabio/sila2-bridge/internal/config"
	"github.com/silabio/sila2-bridge/internal/ingest"
	"github.com/silabio/sila2-bridge/internal/logger"
	"github.com/silabio/sila2-bridge/internal/mcp"
	"github.com/silabio/sila2-bridge/internal/notify"
	"github.com/silabio/sila2-bridge/internal/tools"
)

type busLogSink struct {
	bus *bus.EventBus
}

func (s busLogSink) PublishAsync(eventType string, payload map[string]any) {
	s.bus.PublishAsync(bus.EventType(eventType), payload)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the bridge configuration file")
	flag.Parse()

	bootLog := logger.New(config.LoggingConfig{Level: "info", Format: "text"})

	cfg, err := config.LoadConfig(*configPath, bootLog)
	if err != nil {
		bootLog.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := bus.NewEventBus(log)
	defer eventBus.Stop()
	log.AddHook(logger.NewBusHook(busLogSink{bus: eventBus}))

	publisher, err := notify.New(ctx, cfg.Notify.TopicARN, log)
	if err != nil {
		log.Fatalf("Failed to set up notifications: %v", err)
	}
	notify.Attach(eventBus, publisher)

	registry, err := config.LoadDeviceRegistry(cfg.Devices.RegistryPath, log)
	if err != nil {
		log.Fatalf("Failed to load device registry: %v", err)
	}
	devices := registry.Devices
	if len(devices) == 0 {
		log.Infof("Discovering devices from %s", cfg.Devices.DiscoveryEndpoint)
		devices, err = tools.DescriptorsFromDiscovery(ctx, cfg.Devices.DiscoveryEndpoint, log)
		if err != nil {
			log.Fatalf("Device discovery failed: %v", err)
		}
	}
	if len(devices) == 0 {
		log.Fatal("No devices configured or discovered")
	}
	log.Infof("Bridging %d device(s)", len(devices))

	buf := buffer.New(cfg.Buffer.MaxMinutes, cfg.Buffer.SamplesPerMinute)
	pool := tools.NewClientPool(devices, log)
	toolRegistry := tools.NewRegistry(pool, buf, eventBus, log)

	for _, descriptor := range devices {
		client, ok := pool.ClientFor(descriptor.ID)
		if !ok {
			continue
		}
		ingestor := ingest.New(descriptor.ID, ingest.ClientSource{Client: client}, buf, eventBus, log)
		ingestor.SetBaseBackoff(time.Duration(cfg.Devices.ReconnectBaseSec) * time.Second)
		go ingestor.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	mcp.NewServer(toolRegistry, log).Register(router)
	api.NewServer(buf, eventBus, log).Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Infof("Bridge listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down bridge...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
		os.Exit(1)
	}
	log.Info("Bridge shutdown complete")
}
