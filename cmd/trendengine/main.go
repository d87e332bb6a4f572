package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eringen/trendengine"
	"github.com/eringen/trendengine/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("trendengine %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadConfig(name string, args []string) (trendengine.SiteConfig, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", os.Getenv("TRENDENGINE_CONFIG"), "path to a YAML, JSON or TOML config file")
	if err := fs.Parse(args); err != nil {
		return trendengine.SiteConfig{}, err
	}
	return trendengine.LoadConfig(*path)
}

func runServe(args []string) error {
	cfg, err := loadConfig("serve", args)
	if err != nil {
		return err
	}
	logger, err := trendengine.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := trendengine.New(cfg, views.Funcs(), trendengine.WithLogger(logger))
	logger.Info("starting trendengine", zap.String("version", version))
	return app.Run(ctx)
}

func runConfig(args []string) error {
	cfg, err := loadConfig("config", args)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "\nconfig is not valid:\n%v\n", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`trendengine - A trending topics news engine built with Go, Echo, and templ

Usage:
  trendengine <command> [arguments]

Commands:
  serve [--config file]   Start the HTTP server
  config [--config file]  Print the resolved configuration with secrets masked
  version                 Print the trendengine version
  help                    Show this help message

Configuration is read from the optional config file, a .env file and the
environment (SITE_URL, DATABASE_URL, ADMIN_PASSWORD, SESSION_SECRET, ...).`)
}
