// Command netops-run runs a WASI preview1 module with the netops host module
// linked in.
//
//	netops-run [-config file] [-metrics addr] module.wasm [args...]
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OpenListTeam/wazero-netops/common/config"
	"github.com/OpenListTeam/wazero-netops/netops"
	"github.com/OpenListTeam/wazero-netops/wasmhost"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address (overrides metrics.listen)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [-metrics addr] module.wasm [args...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}

	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer log.Sync()
	netops.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := runModule(ctx, log, cfg, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		log.Error("run failed", zap.Error(err))
		if code == 0 {
			code = 1
		}
	}
	return code
}

func runModule(ctx context.Context, log *zap.Logger, cfg *config.Config, path string, args []string) (int, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return 1, fmt.Errorf("could not read wasm file '%s': %w", path, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ops, err := netops.New(cfg.Options(log, reg)...)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := ops.CloseAll(); err != nil {
			log.Warn("closing resources", zap.Error(err))
		}
	}()

	// Host calls observe ctx themselves; this also stops a guest spinning in
	// its own code.
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer r.Close(context.Background())

	wasi_snapshot_preview1.MustInstantiate(ctx, r)
	if _, err := wasmhost.New(ops, wasmhost.WithLogger(log)).Instantiate(ctx, r); err != nil {
		return 1, err
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return 1, err
	}

	var ln net.Listener
	if cfg.Metrics.Listen != "" {
		if ln, err = net.Listen("tcp", cfg.Metrics.Listen); err != nil {
			return 1, fmt.Errorf("metrics listener: %w", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	guestDone := make(chan struct{})

	var exitCode int
	group.Go(func() error {
		defer close(guestDone)
		modConfig := wazero.NewModuleConfig().
			WithName(filepath.Base(path)).
			WithArgs(append([]string{filepath.Base(path)}, args...)...).
			WithStdin(os.Stdin).
			WithStdout(os.Stdout).
			WithStderr(os.Stderr).
			WithSysWalltime().
			WithSysNanotime().
			WithRandSource(rand.Reader)
		mod, err := r.InstantiateModule(ctx, compiled, modConfig)
		if mod != nil {
			defer mod.Close(context.Background())
		}
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			exitCode = int(exitErr.ExitCode())
			return nil
		}
		return err
	})

	if ln != nil {
		srv := &http.Server{
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info("serving metrics", zap.Stringer("addr", ln.Addr()))
		group.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			select {
			case <-guestDone:
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = group.Wait()
	return exitCode, err
}
