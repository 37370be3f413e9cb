package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/NicolasHaas/gorelay/pkg/logging"
	"github.com/NicolasHaas/gorelay/pkg/server"
	"github.com/NicolasHaas/gorelay/pkg/version"
)

func main() {
	defaults := server.DefaultConfig()

	var (
		configPath       = flag.String("config", "", "YAML config file (flags override file values)")
		listenAddr       = flag.String("listen", defaults.ListenAddr, "TCP bind address")
		wsAddr           = flag.String("ws", defaults.WSAddr, "HTTP bind address for the websocket gateway (empty to disable)")
		metricsAddr      = flag.String("metrics", defaults.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
		motd             = flag.String("motd", defaults.MOTD, "message of the day sent to each new client (empty to disable)")
		handshakeTimeout = flag.Duration("handshake-timeout", time.Duration(defaults.HandshakeTimeout), "max wait for the join line (0 to disable)")
		maxLineBytes     = flag.Int("max-line", defaults.MaxLineBytes, "maximum envelope line size in bytes")
		logLevel         = flag.String("log-level", defaults.LogLevel, "Log level: "+logging.LevelNames())
		logFormat        = flag.String("log-format", defaults.LogFormat, "Log format: text or json")
		showVersion      = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [port]\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "The optional positional argument is the TCP port to listen on (default 5000).\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Explicitly set flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = *listenAddr
		case "ws":
			cfg.WSAddr = *wsAddr
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "motd":
			cfg.MOTD = *motd
		case "handshake-timeout":
			cfg.HandshakeTimeout = server.Duration(*handshakeTimeout)
		case "max-line":
			cfg.MaxLineBytes = *maxLineBytes
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	// Positional port argument wins over everything.
	if flag.NArg() > 0 {
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil || port < 1 || port > 65535 {
			fmt.Fprintf(os.Stderr, "invalid port %q\n", flag.Arg(0))
			os.Exit(1)
		}
		cfg.ListenAddr = fmt.Sprintf(":%d", port)
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	slog.Info("gorelay starting", "version", version.String())

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
