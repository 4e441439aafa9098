package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/locusflow/locusflow/pkg/archive"
	"github.com/locusflow/locusflow/pkg/config"
	"github.com/locusflow/locusflow/pkg/driver"
	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/tui"
)

var (
	runFilter  string
	runIDs     []int64
	runIDsFile string
	runCommit  bool
	runArchive bool
	runTimeout time.Duration
	runWorkers int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a filter against one or more loci",
	Long: `Run a registered filter against a batch of loci.

Each locus is processed independently: one failing invocation never
affects the others, and results are reported in input order. With
--commit the surviving reports are applied (properties persisted,
streams delivered); without it the run is a dry run.

Examples:
  locusflow run --filter high_snr --ids 1,2,3
  locusflow run --filter extragalactic --ids-file loci.txt --commit
  locusflow run --filter high_amplitude --ids 42 --timeout 5s --archive`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFilter, "filter", "f", "", "Filter name (required)")
	runCmd.Flags().Int64SliceVar(&runIDs, "ids", nil, "Comma-separated locus IDs")
	runCmd.Flags().StringVar(&runIDsFile, "ids-file", "", "File with one locus ID per line")
	runCmd.Flags().BoolVar(&runCommit, "commit", false, "Commit surviving reports")
	runCmd.Flags().BoolVar(&runArchive, "archive", false, "Archive the run record to S3")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-invocation budget (overrides config)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Batch concurrency (overrides config, 0 = auto)")

	runCmd.MarkFlagRequired("filter")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	ids, err := collectIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no locus IDs given (use --ids or --ids-file)")
	}

	fn, err := filter.Lookup(runFilter)
	if err != nil {
		return err
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	registry := buildRegistry(cfg)

	timeout := cfg.Driver.Timeout
	if runTimeout > 0 {
		timeout = runTimeout
	}
	workers := cfg.Driver.Workers
	if runWorkers > 0 {
		workers = runWorkers
	}

	d := driver.New(src, registry, driver.Config{
		Timeout: timeout,
		Workers: workers,
		Logger:  log,
	})

	ctx, cancel := signalContext()
	defer cancel()

	tui.Header(version)
	tui.Field("Filter", runFilter)
	tui.Field("Loci", strconv.Itoa(len(ids)))
	tui.Field("Timeout", timeout.String())
	fmt.Println()

	bar := tui.Progress(len(ids), "running")
	startedAt := time.Now()

	results := d.RunBatchProgress(ctx, ids, runFilter, fn, func(completed, total int) {
		bar.Set(completed)
	})
	bar.Finish()

	elapsed := time.Since(startedAt)

	// Summarize
	var failures []string
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, fmt.Sprintf("locus %d: %v", r.LocusID, r.Err))
		}
	}
	succeeded := driver.Succeeded(results)

	tui.Rule()
	tui.Success(fmt.Sprintf("%d/%d loci processed in %s", len(succeeded), len(ids), tui.Elapsed(elapsed)))
	for _, f := range failures {
		tui.Failure(f)
	}

	if runCommit {
		committer, cleanup, err := buildCommitter(cfg, registry, log)
		if err != nil {
			return err
		}
		defer cleanup()

		errs := committer.CommitAll(ctx, succeeded)
		committed := 0
		for i, cerr := range errs {
			if cerr != nil {
				tui.Failure(fmt.Sprintf("commit locus %d: %v", succeeded[i].LocusID, cerr))
				continue
			}
			committed++
		}
		tui.Success(fmt.Sprintf("%d reports committed", committed))
	} else {
		tui.Muted("dry run: pass --commit to apply reports")
	}

	if runArchive {
		if err := archiveRun(ctx, cfg, ids, startedAt, results, failures); err != nil {
			tui.Failure(fmt.Sprintf("archive: %v", err))
			return err
		}
		tui.Success("run record archived to s3://" + cfg.Archive.Bucket)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d invocations failed", len(failures), len(ids))
	}
	return nil
}

// archiveRun persists the run record to S3 using the config's archive
// settings. Failed invocations are recorded in the Failures field so the
// archived record reflects the whole batch, not just the survivors.
func archiveRun(ctx context.Context, cfg *config.Config, ids []int64, startedAt time.Time, results []driver.BatchResult, failures []string) error {
	if cfg.Archive.Bucket == "" {
		return fmt.Errorf("archive requested but no bucket configured")
	}

	s3cfg := archive.DefaultS3Config(cfg.Archive.Bucket)
	s3cfg.Region = cfg.Archive.Region
	s3cfg.Endpoint = cfg.Archive.Endpoint
	if cfg.Archive.Prefix != "" {
		s3cfg.Prefix = cfg.Archive.Prefix
	}

	store, err := archive.NewS3Archive(ctx, s3cfg)
	if err != nil {
		return err
	}

	record := &archive.RunRecord{
		RunID:      uuid.NewString(),
		FilterName: runFilter,
		StartedAt:  startedAt,
		LocusIDs:   ids,
		Reports:    driver.Succeeded(results),
		Failures:   failures,
	}
	return store.Store(ctx, record)
}

// collectIDs merges --ids with the contents of --ids-file.
func collectIDs() ([]int64, error) {
	ids := append([]int64(nil), runIDs...)

	if runIDsFile != "" {
		f, err := os.Open(runIDsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open ids file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			id, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid locus ID %q in %s", line, runIDsFile)
			}
			ids = append(ids, id)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	return ids, nil
}
