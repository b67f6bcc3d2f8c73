package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netinventory/internal/runner"
)

func main() {
	options := runner.ParseOptions()
	inventoryRunner, err := runner.NewRunner(options)
	if err != nil {
		gologger.Fatal().Msgf("Could not create runner: %s\n", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// stdout carries the results, so the notice goes to stderr
	go func() {
		<-c
		fmt.Fprintln(os.Stderr, "\r- Ctrl+C pressed in Terminal, finishing hosts in flight...")
		cancel()
	}()

	if err := inventoryRunner.Run(ctx); err != nil {
		gologger.Fatal().Msgf("Could not run netinventory: %s\n", err)
	}
}
