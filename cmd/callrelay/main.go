// Package main runs the websocket signaling relay used by callcore hosts.
//
// Devices connect to ws://<addr>/?peer=<name>&device=<id> and exchange call
// signaling envelopes; /peers lists the connected peers as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/config"
	"github.com/opd-ai/callcore/transport"
)

const shutdownTimeout = 5 * time.Second

// CLIConfig holds the command-line flags.
type CLIConfig struct {
	envFile string
	addr    string
	help    bool
}

func parseCLIFlags() *CLIConfig {
	c := &CLIConfig{}
	flag.StringVar(&c.envFile, "env", "", "Optional .env file with CALLCORE_* settings")
	flag.StringVar(&c.addr, "addr", "", "Listen address (overrides CALLCORE_RELAY_ADDR)")
	flag.BoolVar(&c.help, "help", false, "Show help message")
	flag.Parse()
	return c
}

func printUsage() {
	fmt.Println("callcore signaling relay")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}

// listenAddr prefers the -addr flag over the configured relay address.
func listenAddr(cfg *config.Config, cli *CLIConfig) string {
	if cli.addr != "" {
		return cli.addr
	}
	return cfg.RelayAddr
}

func newMux(hub *transport.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", hub)
	mux.HandleFunc("/peers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Peers()); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "peers",
				"error":    err.Error(),
			}).Warn("Encoding peer list failed")
		}
	})
	return mux
}

func main() {
	cli := parseCLIFlags()
	if cli.help {
		printUsage()
		os.Exit(0)
	}

	var files []string
	if cli.envFile != "" {
		files = append(files, cli.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyLogging()

	addr := listenAddr(cfg, cli)

	hub := transport.NewHub()
	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logrus.WithField("function", "main").Info("Shutting down relay")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logrus.WithFields(logrus.Fields{
		"function": "main",
		"addr":     addr,
	}).Info("Relay listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Relay failed: %v\n", err)
		os.Exit(1)
	}
}
