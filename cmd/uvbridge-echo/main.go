// Command uvbridge-echo runs a single-threaded TCP echo server on top of
// the uvbridge event loop, demonstrating the handle/request/stream
// machinery end to end: a listening TCP handle accepts connections,
// each connection's stream engine echoes back whatever it reads, and a
// repeating timer prints loop metrics to the log until SIGINT/SIGTERM
// stops the loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	uvbridge "github.com/behrlich/uvbridge"
	"github.com/behrlich/uvbridge/internal/logging"
)

func main() {
	var (
		host       = flag.String("host", "127.0.0.1", "address to bind")
		port       = flag.Int("port", 7777, "port to listen on")
		backlog    = flag.Int("backlog", 128, "listen backlog")
		verbose    = flag.Bool("v", false, "verbose logging")
		statsEvery = flag.Duration("stats-every", 5*time.Second, "metrics log interval")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.New(logConfig)
	logging.SetDefault(logger)

	ctx := uvbridge.NewContext(
		uvbridge.WithLogger(logger),
		uvbridge.WithUncaughtHandler(func(err *uvbridge.Error) {
			logger.Error("uncaught error in callback", "error", err)
		}),
	)

	server := uvbridge.NewTCP(ctx)
	if err := server.Bind(*host, *port); err != nil {
		logger.Error("bind failed", "error", err)
		os.Exit(1)
	}

	err := server.Listen(*backlog, func(err error) {
		if err != nil {
			logger.Warn("accept failed", "error", err)
			return
		}
		client := uvbridge.NewTCP(ctx)
		if acceptErr := server.Accept(client); acceptErr != nil {
			logger.Warn("accept failed", "error", acceptErr)
			return
		}
		serveConnection(logger, client)
	})
	if err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}

	logger.Info("echo server listening", "host", *host, "port", *port)
	fmt.Printf("uvbridge echo server listening on %s:%d\n", *host, *port)

	statsTimer := uvbridge.NewTimer(ctx)
	statsTimer.Start(*statsEvery, *statsEvery, func() {
		snap := ctx.Metrics()
		logger.Info("loop metrics",
			"reads", snap.StreamReads,
			"writes", snap.StreamWrites,
			"read_bytes", snap.StreamReadBytes,
			"write_bytes", snap.StreamWriteBytes,
			"timer_fires", snap.TimerFires,
			"avg_latency_ns", snap.AvgLatencyNs,
			"uptime_ns", snap.UptimeNs,
		)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested")
		ctx.Stop()
	}()

	ctx.Run(uvbridge.RunDefault)

	statsTimer.Close(nil)
	server.Close(nil)
	logger.Info("echo server stopped")
}

// serveConnection wires a client TCP handle's read loop to echo
// whatever it receives back out on the same connection.
func serveConnection(logger *logging.Logger, client *uvbridge.TCP) {
	addr, err := client.GetPeerName()
	if err == nil {
		logger.Debug("client connected", "addr", addr.IP, "port", addr.Port)
	}

	err = client.ReadStart(func(err error, chunk []byte) {
		if err != nil {
			client.Close(nil)
			return
		}
		if chunk == nil {
			client.Shutdown(func(error) { client.Close(nil) })
			return
		}
		echoed := append([]byte(nil), chunk...)
		client.Write([][]byte{echoed}, func(err error) {
			if err != nil {
				logger.Warn("write failed", "error", err)
			}
		})
	})
	if err != nil {
		logger.Warn("read_start failed", "error", err)
		client.Close(nil)
	}
}
