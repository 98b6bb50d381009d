package main

import (
	"context"
	"fmt"
	"log"

	"mt4bridge/config"
	"mt4bridge/internal/adapters/logger"
	"mt4bridge/internal/adapters/zmqtransport"
	"mt4bridge/internal/protocol"
	"mt4bridge/internal/session"
)

// Sends one HEARTBEAT and waits for the terminal's reply. Exit status and
// output make it suitable for cron-style liveness checks.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	transport, err := zmqtransport.New()
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize transport: %v", err)
	}
	sess, err := session.Open(transport, session.Config{
		CommandEndpoint: cfg.CommandEndpoint(),
		ReplyEndpoint:   cfg.ReplyEndpoint(),
		FeedEndpoint:    cfg.FeedEndpoint(),
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		PollInterval:    cfg.PollInterval,
		JoinTimeout:     cfg.JoinTimeout,
		Logger:          appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to open terminal session: %v", err)
	}
	defer sess.Shutdown()

	if !sess.Send(protocol.Heartbeat()) {
		log.Fatal("Heartbeat not sent: command channel unhealthy")
	}

	reply, ok := sess.Receive(cfg.ReceiveTimeout)
	if !ok {
		log.Fatalf("No heartbeat reply within %s", cfg.ReceiveTimeout)
	}
	appLogger.Info(ctx, "Terminal replied", map[string]interface{}{"reply": reply})
	fmt.Println("terminal alive")
}
