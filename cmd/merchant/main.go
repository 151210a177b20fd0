package main

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/exp/slog"

	"github.com/alovak/cardflow-merchant/gateway"
)

func main() {
	logger := slog.Default()
	cfg := gateway.ConfigFromEnv()

	signer, closeSigner, err := newSigner(cfg)
	if err != nil {
		logger.Error("configuring signer", "err", err)
		os.Exit(1)
	}
	defer closeSigner()

	app := gateway.NewApp(logger, cfg)
	app.Signer = signer
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
