// Terminal monitor: pick a port, send the identifier and watch the humidity value.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/config"
	"github.com/NotCoffee418/humidity_monitor/pkg/logging"
	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/NotCoffee418/humidity_monitor/pkg/session"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Config file (.toml or .yaml). Defaults are used when empty.")
	port := flag.String("port", "", "Serial port, overrides the config")
	identifier := flag.String("id", "", "Identifier to send after opening, overrides the config")
	driver := flag.String("driver", "", "Serial driver: bugst, jacobsa or tarm")
	list := flag.Bool("list", false, "List serial ports and exit")
	logLevel := flag.String("log", "warn", "Log level")
	flag.Parse()

	logging.Setup(*logLevel)

	if *list {
		if err := listPorts(); err != nil {
			log.Fatal().Err(err).Msg("Failed to list serial ports")
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfigFile(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load config")
		}
		cfg = loaded
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *identifier != "" {
		cfg.Identifier = *identifier
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid settings")
	}

	manager := session.NewManager(session.Options{
		Serial: cfg.SerialConfig(*port),
		Reader: cfg.ReaderOptions(),
	})
	if err := manager.Open(""); err != nil {
		fmt.Fprintf(os.Stderr, "fail to open port: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	if cfg.Identifier != "" {
		if err := manager.SendIdentifier(cfg.Identifier); err != nil {
			fmt.Fprintf(os.Stderr, "fail to send id: %v\n", err)
		} else {
			fmt.Printf("sent id: %s\n", cfg.Identifier)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	watch(ctx, manager)
}

// watch prints every new value once per second until interrupted or the session ends.
func watch(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastSequence uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-manager.Done():
			if exit := manager.Status().LastExit; exit != nil {
				fmt.Printf("session ended: %s\n", exit)
			}
			return
		case <-ticker.C:
			snap := manager.Latest()
			if snap.Sequence == lastSequence {
				continue
			}
			lastSequence = snap.Sequence
			fmt.Printf("Received humidity: %s%%\n", snap.Value)
		}
	}
}

func listPorts() error {
	ports, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\tUSB %s:%s %s\n", p.Name, p.VID, p.PID, p.Product)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}
