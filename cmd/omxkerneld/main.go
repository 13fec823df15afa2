// omxkerneld is the component kernel daemon. It listens on a unix socket
// and exposes the kernel's standard entry points (SendCommand,
// EmptyThisBuffer, FillThisBuffer, Get/SetParameter, event feed) over
// HTTP, persisting an audit trail to SQLite and per-component kernel
// events to gzip-rotated NDJSON segments.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tizedge/omxkernel/internal/api"
	"github.com/tizedge/omxkernel/internal/config"
	"github.com/tizedge/omxkernel/internal/eventlog"
	"github.com/tizedge/omxkernel/internal/registry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.DefaultConfig()
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("create directories: %v", err)
	}

	log.Printf("omxkerneld starting (component: %s)", cfg.ComponentName)

	reg, err := registry.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open registry: %v", err)
	}
	defer reg.Close()
	log.Printf("registry: %s", cfg.DBPath)

	events := eventlog.NewStore(cfg.EventLogDir, cfg.EventLogSegmentBytes)
	log.Printf("event log: %s", cfg.EventLogDir)

	server := api.NewServer(cfg, reg, events)
	if err := server.Start(); err != nil {
		log.Fatalf("start API server: %v", err)
	}

	pidPath := cfg.DataDir + "/omxkerneld.pid"
	os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0600)
	defer os.Remove(pidPath)

	log.Printf("omxkerneld ready (pid %d, socket %s)", os.Getpid(), cfg.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("received %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RMQuiesceTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	os.Remove(cfg.SocketPath)

	log.Println("omxkerneld stopped")
}
