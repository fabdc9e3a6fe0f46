package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sonirico/wsclient"
)

func main() {
	// .env is optional, flags still win over it.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "wsclient",
		Usage: "connect to a websocket endpoint, send stdin lines as text frames and print what comes back",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Usage:    "websocket endpoint (ws:// or wss://)",
				EnvVars:  []string{"WSCLIENT_URL"},
				Required: true,
			},
			&cli.DurationFlag{
				Name:    "keepalive",
				Usage:   "keepalive ping interval",
				EnvVars: []string{"WSCLIENT_KEEPALIVE"},
				Value:   wsclient.DefaultKeepAliveInterval,
			},
			&cli.DurationFlag{
				Name:    "setup-timeout",
				Usage:   "maximum time to wait for the connection to open",
				EnvVars: []string{"WSCLIENT_SETUP_TIMEOUT"},
				Value:   wsclient.DefaultSetupTimeout,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"WSCLIENT_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "serve prometheus metrics on this address, disabled when empty",
				EnvVars: []string{"WSCLIENT_METRICS_ADDR"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := wsclient.NewMetrics(reg, "wsclient")

	if addr := c.String("metrics-addr"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server stopped: %s", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client := wsclient.New(
		wsclient.WithLogger(wsclient.NewLogrusLogger(log)),
		wsclient.WithMetrics(metrics),
		wsclient.WithKeepAliveInterval(c.Duration("keepalive")),
		wsclient.WithSetupTimeout(c.Duration("setup-timeout")),
	)
	defer client.Close()

	client.SetStatusHandler(func(s wsclient.ConnectionStatus) {
		fmt.Fprintf(os.Stderr, "* %s\n", s)
	})
	client.SetMessageHandler(func(text string) {
		fmt.Println(text)
	})

	client.Connect(c.String("url"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			client.Send(line)
		}
	}
}
