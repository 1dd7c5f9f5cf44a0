package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumachat/luma-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run()
	}()

	select {
	case sig := <-stop:
		a.Log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server exited", "error", err.Error())
		}
	}
}
