package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kardexapp/kardex/internal/cli"
)

func main() {
	if os.Getenv("KARDEX_DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
