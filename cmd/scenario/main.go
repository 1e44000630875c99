package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/scenario"
	"github.com/okian/covergap/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	def := scenario.DefaultConfig()
	var (
		baseURL   = flag.String("url", def.BaseURL, "Base URL of the service")
		lat       = flag.Float64("lat", def.Center.Lat, "Jurisdiction center latitude")
		lon       = flag.Float64("lon", def.Center.Lon, "Jurisdiction center longitude")
		span      = flag.Float64("span", def.SpanDeg, "Viewport width and height in degrees")
		stations  = flag.Int("stations", def.Stations, "Existing stations to place")
		incidents = flag.Int("incidents", def.Incidents, "Incidents to generate and submit")
		clusters  = flag.Int("clusters", def.Clusters, "Incident hot spots")
		suggest   = flag.Int("suggest", def.Suggest, "Sites to request (0 skips suggest)")
		target    = flag.String("target", def.Target, "Optimization target: population, area, incidents or balanced")
		boundary  = flag.Bool("boundary", def.Boundary, "Upload a jurisdiction boundary")
		seed      = flag.Uint64("seed", def.Seed, "Generator seed")
		workers   = flag.Int("workers", def.Workers, "Concurrent submit requests")
		batch     = flag.Int("batch", def.BatchSize, "Incidents per submit request")
		timeout   = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		settle    = flag.Duration("settle", def.Settle, "How long to wait for ingestion")
		output    = flag.String("output", "", "Report file (default: scenario_report_TIMESTAMP.json)")
		format    = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	out := *output
	if out == "" {
		out = "scenario_report_" + time.Now().Format("20060102_150405") + ".json"
	}

	cfg := &scenario.Config{
		BaseURL:   *baseURL,
		Center:    geo.Point{Lat: *lat, Lon: *lon},
		SpanDeg:   *span,
		Stations:  *stations,
		Incidents: *incidents,
		Clusters:  *clusters,
		Suggest:   *suggest,
		Target:    *target,
		Boundary:  *boundary,
		Seed:      *seed,
		Workers:   *workers,
		BatchSize: *batch,
		Timeout:   *timeout,
		Settle:    *settle,
		Output:    out,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	log := logger.Get()
	if _, err := scenario.Run(ctx, cfg); err != nil {
		if errors.Is(err, scenario.ErrVerification) {
			log.Error(ctx, "scenario checks failed", logger.Error(err))
		} else {
			log.Error(ctx, "scenario failed", logger.Error(err))
		}
		os.Exit(1)
	}
	log.Info(ctx, "scenario passed")
}
