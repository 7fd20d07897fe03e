package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rrdexport/internal/app"
)

const (
	exitCodeFailure = 1
	exitCodeUsage   = 2
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usageText = `usage: rrdexport [-config path] <command> [flags]

commands:
  serve                      run the HTTP adapter (requires -config with http.enabled)
  families                   list families with data and their identifiers
  export -family name [...]  export one window as JSON
  query -family name [...]   print the rrdtool xport arguments without running them
`

// run dispatches one CLI invocation.
// Params: none.
// Returns: process exit code.
func run() int {
	var (
		configPath string
		showInfo   bool
	)

	flag.StringVar(&configPath, "config", "", "path to TOML config file or directory")
	flag.BoolVar(&showInfo, "v", false, "show build information")
	flag.BoolVar(&showInfo, "version", false, "show build information")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if showInfo {
		fmt.Printf("rrdexport version=%s commit=%s date=%s\n", version, commit, date)
		return 0
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return exitCodeUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args[0] == "serve" {
		if configPath == "" {
			fmt.Fprintln(os.Stderr, "error: serve requires -config")
			return exitCodeUsage
		}
		return serve(ctx, configPath)
	}

	err := app.Execute(ctx, app.Command{
		ConfigPath: configPath,
		Name:       args[0],
		Args:       args[1:],
		Stdout:     os.Stdout,
	})
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if errors.Is(err, app.ErrUsage) {
		flag.Usage()
		return exitCodeUsage
	}
	return exitCodeFailure
}

// serve runs the HTTP adapter and relays SIGHUP as config reloads.
// Params: ctx process lifecycle; configPath TOML file or directory.
// Returns: process exit code.
func serve(ctx context.Context, configPath string) int {
	reloadSignal := make(chan os.Signal, 1)
	signal.Notify(reloadSignal, syscall.SIGHUP)
	defer signal.Stop(reloadSignal)

	reload := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadSignal:
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		}
	}()

	if err := app.Run(ctx, app.Runtime{ConfigPath: configPath, Reload: reload}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}
	return 0
}

func main() {
	os.Exit(run())
}
