package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/cmd"
)

func main() {
	// .env.local first: godotenv never overrides a variable that is already set.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "creative: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
