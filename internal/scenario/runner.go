package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
	pollInterval        = 250 * time.Millisecond
)

// Report is the JSON written at the end of a run.
type Report struct {
	StartedAt   time.Time              `json:"started_at"`
	Duration    string                 `json:"duration"`
	Seed        uint64                 `json:"seed"`
	Bounds      geo.Bounds             `json:"bounds"`
	Target      string                 `json:"target"`
	Stations    int                    `json:"stations"`
	Incidents   int                    `json:"incidents"`
	Accepted    int64                  `json:"accepted"`
	Duplicates  int64                  `json:"duplicates"`
	Rejected    int64                  `json:"rejected"`
	RadiusMiles float64                `json:"radius_miles"`
	Score       *service.ScoreResult   `json:"score,omitempty"`
	Suggest     *service.SuggestResult `json:"suggest,omitempty"`
	Checks      []Check                `json:"checks"`
}

// Run generates a jurisdiction, loads it into the service, scores it twice,
// asks for suggestions and verifies the results. A failed check returns the
// report together with ErrVerification.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	log := logger.Get().Named("scenario")
	start := time.Now()

	j, err := Generate(cfg, start)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "starting coverage scenario",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("stations", len(j.Stations)),
		logger.Int("incidents", len(j.Incidents)),
		logger.Int("suggest", cfg.Suggest),
		logger.String("target", cfg.Target),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	baseline, err := incidentCount(ctx, client)
	if err != nil {
		return nil, err
	}

	if err := client.PutStations(ctx, j.Stations); err != nil {
		return nil, err
	}
	var boundary *geo.Boundary
	if j.Boundary != nil {
		if boundary, err = geo.ParseBoundary(j.Boundary); err != nil {
			return nil, err
		}
		if err := client.PutBoundary(ctx, j.Boundary); err != nil {
			return nil, err
		}
	} else if err := client.ClearBoundary(ctx); err != nil {
		return nil, err
	}

	report := &Report{
		StartedAt: start.UTC(),
		Seed:      cfg.Seed,
		Bounds:    j.Bounds,
		Target:    cfg.Target,
		Stations:  len(j.Stations),
		Incidents: len(j.Incidents),
	}
	if err := submit(ctx, client, cfg, j, report); err != nil {
		return nil, err
	}
	log.Info(ctx, "incidents submitted",
		logger.Int("accepted", int(report.Accepted)),
		logger.Int("duplicates", int(report.Duplicates)),
		logger.Int("rejected", int(report.Rejected)),
	)
	if err := waitForIngest(ctx, client, baseline+int(report.Accepted), cfg.Settle); err != nil {
		return nil, err
	}

	score, err := client.Score(ctx, j.Bounds, cfg.Target)
	if err != nil {
		return nil, err
	}
	rescore, err := client.Score(ctx, j.Bounds, cfg.Target)
	if err != nil {
		return nil, err
	}
	report.Score = &score
	report.RadiusMiles = score.RadiusMiles

	if cfg.Suggest > 0 {
		suggest, err := client.Suggest(ctx, j.Bounds, cfg.Target, cfg.Suggest)
		if err != nil {
			return nil, err
		}
		report.Suggest = &suggest
	}

	report.Checks = Verify(j, boundary, &score, &rescore, report.Suggest)
	report.Duration = time.Since(start).String()

	if cfg.Output != "" {
		if err := WriteReport(cfg.Output, report); err != nil {
			log.Warn(ctx, "failed to write report", logger.Error(err))
		} else {
			log.Info(ctx, "report written", logger.String("file", cfg.Output))
		}
	}

	for _, c := range report.Checks {
		log.Info(ctx, "check", logger.String("name", c.Name), logger.Bool("passed", c.Passed), logger.String("detail", c.Detail))
	}
	if failed := Failed(report.Checks); len(failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d checks failed, first: %s", ErrVerification, len(failed), len(report.Checks), failed[0].Name)
	}
	return report, nil
}

// submit posts incidents in batches across cfg.Workers concurrent requests.
func submit(ctx context.Context, client *Client, cfg *Config, j *Jurisdiction, report *Report) error {
	var accepted, duplicates, rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for start := 0; start < len(j.Incidents); start += cfg.BatchSize {
		batch := j.Incidents[start:min(start+cfg.BatchSize, len(j.Incidents))]
		g.Go(func() error {
			ack, err := client.SubmitIncidents(gctx, batch)
			if err != nil {
				return err
			}
			accepted.Add(int64(ack.Accepted))
			duplicates.Add(int64(ack.Duplicates))
			rejected.Add(int64(ack.Rejected))
			return nil
		})
	}
	err := g.Wait()
	report.Accepted = accepted.Load()
	report.Duplicates = duplicates.Load()
	report.Rejected = rejected.Load()
	return err
}

// waitForIngest polls /stats until the store holds want incidents.
func waitForIngest(ctx context.Context, client *Client, want int, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	got := 0
	for {
		n, err := incidentCount(ctx, client)
		if err == nil {
			got = n
			if got >= want {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: have %d of %d", ErrIngestTimeout, got, want)
		case <-ticker.C:
		}
	}
}

func incidentCount(ctx context.Context, client *Client) (int, error) {
	stats, err := client.Stats(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := stats["incidents"].(float64)
	return int(n), nil
}

// WriteReport writes the report as indented JSON, creating parent directories.
func WriteReport(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
