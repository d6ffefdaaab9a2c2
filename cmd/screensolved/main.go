// Command screensolved runs the screensolve daemon in the foreground. It is
// equivalent to `screensolve daemon` and suits service managers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"screensolve/internal/config"
	"screensolve/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Log level override")
	diagnostic := flag.Bool("diagnostic", false, "Write a separate JSON debug log")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:   *logLevel,
		Diagnostic: *diagnostic,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
