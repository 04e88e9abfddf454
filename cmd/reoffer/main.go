package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skylith/reoffer/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "serve":
		err = app.RunServer(ctx, *configPath)
	case "migrate":
		err = app.Migrate(ctx, *configPath)
	case "seed":
		flightNo := flag.Arg(1)
		if flightNo == "" {
			flightNo = "AB123"
		}
		err = app.Seed(ctx, *configPath, flightNo)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (expected serve, migrate, or seed)\n", command)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
