// Humidity watch prints readings streamed by a running humidity API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/NotCoffee418/humidity_monitor/pkg/listener"
	"github.com/NotCoffee418/humidity_monitor/pkg/logging"
	"github.com/NotCoffee418/humidity_monitor/pkg/types"
)

func main() {
	logging.Setup(os.Getenv("HUMIDITY_MONITOR_LOG_LEVEL"))

	// Set the host:port from env var HUMIDITY_API_HOST
	host := os.Getenv("HUMIDITY_API_HOST")
	if host == "" {
		host = "localhost:9040"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Subscribe to websocket with revive
	listener.StartListener(ctx, host, handleReading)
}

func handleReading(reading *types.Reading) {
	fmt.Println(string(reading.ToJsonBytes()))
}
