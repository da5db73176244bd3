// Command watch connects to the collaboration gateway as a dashboard client
// and prints every event it receives. Useful for poking at a running
// gateway without the SPA.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/order-collab/internal/client"
	"github.com/iliyamo/order-collab/internal/model"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "gateway websocket endpoint")
	token := flag.String("token", os.Getenv("DASHBOARD_TOKEN"), "bearer credential")
	userID := flag.String("user", os.Getenv("DASHBOARD_USER_ID"), "own user id (room to join)")
	flag.Parse()

	if *token == "" || *userID == "" {
		log.Fatal("need -token and -user (or DASHBOARD_TOKEN / DASHBOARD_USER_ID)")
	}

	c := client.New(client.Options{URL: *url, Token: *token, UserID: *userID})
	for _, ev := range []string{
		model.EventConnectionStatus,
		model.EventDashboardJoined,
		model.EventMetricsUpdate,
		model.EventOrderLocked,
		model.EventOrderUnlocked,
		model.EventError,
	} {
		event := ev
		c.On(event, func(data json.RawMessage) {
			log.Printf("%s %s", event, data)
		})
	}
	c.OnState(func(s client.State) {
		log.Printf("state=%s attempt=%d err=%v", s.Status, s.Attempt, s.LastError)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("session ended: %v", err)
	}
}
