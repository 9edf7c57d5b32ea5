// Command slabqd runs the slabq in-memory queue service: an acceptor
// thread and a fixed set of worker reactors in front of the named-queue
// storage engine. Startup loads .env, then config, then logging, then
// starts the listeners and waits on a signal.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"slabq/pkg/config"
	"slabq/pkg/logging"
	"slabq/pkg/metrics"
	"slabq/pkg/mqueue"
	"slabq/pkg/reactor"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.Defaults()
	flags, set := config.ParseFlags(os.Args[1:])
	if err := config.LoadFile(cfg, flags.ConfigPath); err != nil {
		logging.Log.Error("failed to load config file", "err", err)
		os.Exit(1)
	}
	config.ApplyEnv(cfg)
	config.ApplyFlags(cfg, flags, set)
	logging.Init(cfg.Logging.Level)

	engine := mqueue.NewEngine(mqueue.Config{
		BlockSize:         config.ParseSize(cfg.Queue.BlockSize),
		QueuePoolSize:     config.ParseSize(cfg.Queue.PoolSize),
		FreeBlockPoolCap:  cfg.Queue.FreeBlockPoolCap,
		InitialBlockCount: cfg.Queue.InitialBlockCount,
	})
	disp := reactor.NewDispatcher(engine)

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logging.Log.Warn("metrics listener stopped", "err", err)
			}
		}()
	}

	n := cfg.WorkerThreadNum
	if n <= 0 {
		n = 8
	}
	workers := make([]*reactor.Worker, n)
	for i := 0; i < n; i++ {
		w, err := reactor.NewWorker(i, disp, cfg)
		if err != nil {
			logging.Log.Error("failed to create worker reactor", "worker", i, "err", err)
			os.Exit(1)
		}
		workers[i] = w
		go w.Run()
	}
	logging.Log.Info("worker reactors started", "count", n)

	acceptor, err := reactor.NewAcceptor(cfg, workers)
	if err != nil {
		logging.Log.Error("failed to start acceptor", "err", err)
		os.Exit(1)
	}
	go acceptor.Run()
	logging.Log.Info("slabq listening", "addr", cfg.Addr())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	logging.Log.Info("signal received, shutting down", "signal", s.String())
}
