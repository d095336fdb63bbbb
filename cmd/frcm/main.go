// Command frcm computes the fire risk (time to flashover) for a CSV file of
// weather observations.
//
// Usage:
//
//	frcm [-store dir] [-no-cache] input.csv [output.csv]
//
// The input needs the columns timestamp, temperature, humidity (percent) and
// wind_speed (m/s). Results are written to output.csv when given, otherwise to
// stdout, as timestamp,ttf rows. Computations are cached in the result store
// configured by STORE_BACKEND unless -no-cache is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/frcm-service/internal/adapter/csvio"
	"github.com/couchcryptid/frcm-service/internal/config"
	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
	"github.com/couchcryptid/frcm-service/internal/observability"
	"github.com/couchcryptid/frcm-service/internal/service"
	"github.com/couchcryptid/frcm-service/internal/store"
)

var errUsage = errors.New("usage: frcm [-store dir] [-no-cache] input.csv [output.csv]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "frcm:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("frcm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	storeDir := fs.String("store", "", "cache directory for the file result store (overrides STORE_BACKEND)")
	noCache := fs.Bool("no-cache", false, "compute without consulting or populating the result store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewTextLogger(stderr, cfg.LogLevel)

	input := fs.Arg(0)
	raw, err := readInput(input)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("%s contains no data points, check the input format", input)
	}
	logger.Info("computing fire risk", "input", input, "observations", len(raw))

	var rs store.ResultStore = store.NewMemoryStore()
	if !*noCache {
		if *storeDir != "" {
			cfg.StoreBackend = config.StoreFile
			cfg.StoreDir = *storeDir
		}
		backend, err := store.Open(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open result store: %w", err)
		}
		defer func() { _ = backend.Close() }()
		rs = backend.Store
	}

	svc := service.New(firerisk.NewDefault(), rs, logger, observability.NewMetricsForTesting())

	series, err := svc.Validate(raw)
	if err != nil {
		return err
	}

	var res service.Result
	if *noCache {
		risk, err := svc.Compute(series)
		if err != nil {
			return err
		}
		res = service.Result{Fingerprint: svc.Fingerprint(series), Risk: risk}
	} else if res, err = svc.Evaluate(ctx, series); err != nil {
		return err
	}

	latest, _ := res.Risk.Latest()
	level := domain.DangerLevelFromTTF(latest.TTF)
	logger.Info("fire risk computed",
		"fingerprint", res.Fingerprint.Short(),
		"cached", res.FromCache,
		"latest_ttf", latest.TTF,
		"danger_level", string(level),
		"message", level.Message(),
	)

	if fs.NArg() == 2 {
		return writeOutput(fs.Arg(1), res.Risk)
	}
	return csvio.WriteRisk(stdout, res.Risk)
}

func readInput(path string) ([]domain.RawObservation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	raw, err := csvio.ReadObservations(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func writeOutput(path string, risks domain.RiskSeries) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return csvio.WriteRisk(f, risks)
}
