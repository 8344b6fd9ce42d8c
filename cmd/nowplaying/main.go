package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nowplaying/internal/app"
	"nowplaying/internal/config"
)

const stopTimeout = 5 * time.Second

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	var (
		cfgPath     string
		endpoint    string
		logLevel    string
		printConfig bool
	)
	flag.StringVar(&cfgPath, "config", os.Getenv("NOWPLAYING_CONFIG"), "path to config file (default: ./config.{yaml,json,toml,...})")
	flag.StringVar(&endpoint, "endpoint", os.Getenv("NOWPLAYING_ENDPOINT"), "websocket rpc endpoint")
	flag.StringVar(&logLevel, "log-level", os.Getenv("NOWPLAYING_LOG_LEVEL"), "override logging.level")
	flag.BoolVar(&printConfig, "print-config", false, "print the resolved config as yaml and exit")
	flag.Parse()

	if printConfig {
		st, err := config.NewSource(cfgPath).Load()
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		if err := config.Dump(os.Stdout, st); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, Endpoint: endpoint, LogLevel: logLevel})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopConnectFailed)
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case sig := <-sigCh:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
	err = a.Stop(sctx, reason)
	scancel()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
