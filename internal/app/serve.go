package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starlit.dev/newsflow/internal/cache"
	"starlit.dev/newsflow/internal/cli"
	"starlit.dev/newsflow/internal/httpapi"
	"starlit.dev/newsflow/internal/reader"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (overrides SERVER_HOST)")
	port := fs.Int("port", 0, "HTTP port (overrides SERVER_PORT)")
	readTimeout := fs.Duration("read-timeout", 0, "HTTP read timeout (overrides SERVER_READ_TIMEOUT)")
	writeTimeout := fs.Duration("write-timeout", 0, "HTTP write timeout (overrides SERVER_WRITE_TIMEOUT)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 0, "Graceful shutdown timeout (overrides SERVER_SHUTDOWN_TIMEOUT)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	parts, err := bootstrap(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	opts := httpapi.Options{
		Host:            parts.cfg.ServerHost,
		Port:            parts.cfg.ServerPort,
		ReadTimeout:     parts.cfg.ServerReadTimeout,
		WriteTimeout:    parts.cfg.ServerWriteTimeout,
		ShutdownTimeout: parts.cfg.ServerShutdownTimeout,
	}
	if *host != "" {
		opts.Host = *host
	}
	if *port > 0 {
		opts.Port = *port
	}
	if *readTimeout > 0 {
		opts.ReadTimeout = *readTimeout
	}
	if *writeTimeout > 0 {
		opts.WriteTimeout = *writeTimeout
	}
	if *shutdownTimeout > 0 {
		opts.ShutdownTimeout = *shutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	extractor := reader.NewExtractor(reader.Options{Timeout: 12 * time.Second})
	srv := httpapi.NewServer(parts.client, parts.aggregator, cache.New(parts.cfg.CacheTTL), extractor, parts.logger, opts)

	if err := srv.Start(ctx); err != nil {
		parts.logger.Error().Err(err).Str("host", opts.Host).Int("port", opts.Port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
