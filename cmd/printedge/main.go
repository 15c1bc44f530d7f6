package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printedge/backend"
	"printedge/config"
	"printedge/engine"
	"printedge/messaging"
	"printedge/printing"
	"printedge/store"
	"printedge/www"

	"github.com/google/uuid"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "printedge.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Load and validate config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if *port > 0 {
		cfg.Web.Port = *port
	}

	// Stable agent identity, generated on first run
	if cfg.Messaging.ClientID == "" {
		cfg.Messaging.ClientID = "printedge-" + uuid.NewString()[:8]
		if err := cfg.Save(*configPath); err != nil {
			log.Printf("save config: %v", err)
		}
	}
	clientID := cfg.Messaging.ClientID

	// Open local journal
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Print sink
	sink, err := printing.New(&cfg.Printer)
	if err != nil {
		log.Fatalf("printer: %v", err)
	}

	// Create and start engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		Source:     backend.NewClient(&cfg.Backend),
		Sink:       sink,
		DB:         db,
		LogFunc:    log.Printf,
		Debug:      *debug,
	})
	eng.Start()
	defer eng.Stop()

	// Optional messaging: status reports, heartbeat, remote commands
	var msgClient *messaging.Client
	if cfg.Messaging.Enabled {
		reporter := messaging.NewStatusReporter(db, clientID, cfg.Backend.RestaurantID, cfg.Messaging.StatusTopic)
		reporter.Wire(eng.Events)

		msgClient = messaging.NewClient(&cfg.Messaging)
		defer msgClient.Close()
		if err := msgClient.Connect(); err != nil {
			log.Printf("messaging connect: %v (status events queue in outbox)", err)
		} else {
			hb := messaging.NewHeartbeater(msgClient, db, eng, clientID, cfg.Backend.RestaurantID,
				version, cfg.Messaging.HeartbeatTopic, cfg.Messaging.HeartbeatInterval)
			hb.Start()
			defer hb.Stop()

			cmdHandler := messaging.NewCommandHandler(eng, clientID)
			if err := msgClient.Subscribe(cfg.Messaging.CommandTopic, cmdHandler.Handle); err != nil {
				log.Printf("command subscribe: %v", err)
			}
		}

		drainer := messaging.NewOutboxDrainer(db, msgClient, &cfg.Messaging)
		drainer.Start()
		defer drainer.Stop()
	}

	// Local web UI / API
	router, stopWeb := www.NewRouter(eng, msgClient, version)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("printedge %s listening on %s", version, addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	// Stop SSE event hub first so long-lived connections close
	stopWeb()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}
