// The device simulator: hosts the mock laboratory behind the device RPC
// protocol.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/silabio/sila2-bridge/internal/config"
	"github.com/silabio/sila2-bridge/internal/logger"
	"github.com/silabio/sila2-bridge/internal/sila"
	"github.com/silabio/sila2-bridge/internal/simulator"
)

func main() {
	listen := flag.String("listen", ":50051", "address to listen on")
	flag.Parse()

	log := logger.New(config.LoggingConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.New(simulator.DefaultDevices(), log)
	server := sila.NewServer(sim, log)

	addr, err := server.Listen(*listen)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	log.Infof("Device simulator listening on %s", addr)

	if err := server.Serve(ctx); err != nil {
		log.Fatalf("Simulator failed: %v", err)
	}
	log.Info("Simulator shutdown complete")
}
