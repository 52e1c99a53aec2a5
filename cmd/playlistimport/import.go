package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"playlistimport/internal/catalog"
	"playlistimport/internal/core"
	"playlistimport/internal/match"
	"playlistimport/internal/pipeline"
	"playlistimport/internal/report"
	"playlistimport/pkg/normalize"
	"playlistimport/pkg/songtext"
)

type importOptions struct {
	playlistName string
	public       bool
	description  string
	outputReport string
	concurrency  int
	batchSize    int
	logLevel     string
}

func newImportCmd() *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "import a song list into a new Spotify playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}
	bindImportFlags(cmd, opts, "report.txt", core.DefaultConcurrencyLimit, core.DefaultBatchSize)
	return cmd
}

func newBatchImportCmd() *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "batch-import <file>",
		Short: "import a large song list, tuned for high-volume batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}
	bindImportFlags(cmd, opts, "batch-report.txt", core.DefaultConcurrencyLimit*2, core.DefaultBatchSize*4)
	return cmd
}

func bindImportFlags(cmd *cobra.Command, opts *importOptions, defaultReportPath string, defaultConcurrency, defaultBatchSize int) {
	cmd.Flags().StringVar(&opts.playlistName, "playlist-name", "Imported Playlist", "name of the playlist to create")
	cmd.Flags().BoolVar(&opts.public, "public", false, "make the created playlist public")
	cmd.Flags().StringVar(&opts.description, "description", "", "playlist description")
	cmd.Flags().StringVar(&opts.outputReport, "output-report", defaultReportPath, "path to write the plain-text report")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", defaultConcurrency, "concurrent outbound catalog requests")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", defaultBatchSize, "parser fan-out hint")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (DEBUG, INFO, WARNING, ERROR)")
}

func runImport(cmd *cobra.Command, inputPath string, opts *importOptions) error {
	ctx := cmd.Context()

	if opts.logLevel != "" {
		config.Log.Level = strings.ToUpper(opts.logLevel)
		logger = buildLogger(config.Log.Level)
	}

	if err := config.Validate(); err != nil {
		return newExitError(exitConfigOrAuth, err)
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return newExitError(exitInputError, fmt.Errorf("open input file: %w", err))
	}
	defer file.Close()

	parser := songtext.New()
	songs, parseErrs, err := parser.ParseLines(file)
	if err != nil {
		return newExitError(exitInputError, fmt.Errorf("read input file: %w", err))
	}

	normOpts := normalize.Options{}
	if cjk, err := normalize.NewGoccConverter(); err == nil {
		normOpts.CJK = cjk
	} else {
		logger.Warn("traditional-to-simplified conversion unavailable", zap.Error(err))
	}
	normalizer := normalize.New(normOpts, config.Concurrency.CacheEnabled)
	matcher := match.New(normalizer, config.Matching)

	client := catalog.NewClient(config.Catalog, opts.concurrency, normalizer, logger)
	defer client.Close()

	if err := client.Authenticate(ctx); err != nil {
		logger.Info("no valid cached token, starting interactive authorization", zap.Error(err))
		if err := runInteractiveAuth(ctx, client); err != nil {
			return newExitError(exitConfigOrAuth, fmt.Errorf("authorization failed: %w", err))
		}
	}

	coordinator := pipeline.New(
		client,
		matcher,
		opts.concurrency,
		opts.batchSize*2,
		time.Duration(config.Catalog.TotalTimeoutPerCallSeconds)*time.Second,
		logger,
	)

	songResults := coordinator.Run(ctx, songs)
	rpt := pipeline.Aggregate(songResults, parseErrs)

	matchedURIs := make([]string, 0, len(rpt.Results))
	for _, r := range rpt.Results {
		if r.Status == core.StatusMatched || r.Status == core.StatusLowConfidenceMatch {
			matchedURIs = append(matchedURIs, r.Matched.URI)
		}
	}

	var playlistErr error
	if len(matchedURIs) > 0 {
		playlistID, playlistURL, err := client.CreatePlaylist(ctx, opts.playlistName, opts.public, opts.description)
		if err != nil {
			playlistErr = fmt.Errorf("create playlist: %w", err)
		} else {
			added, skipped, err := client.AddTracks(ctx, playlistID, matchedURIs)
			if err != nil {
				playlistErr = fmt.Errorf("add tracks: %w", err)
			}
			logger.Info("playlist created",
				zap.String("url", playlistURL),
				zap.Int("added", added),
				zap.Int("skipped_duplicates", skipped))
		}
	}

	reportFile, err := os.Create(opts.outputReport)
	if err != nil {
		return newExitError(exitFatalRuntime, fmt.Errorf("create report file: %w", err))
	}
	defer reportFile.Close()

	if err := report.Write(reportFile, rpt); err != nil {
		return newExitError(exitFatalRuntime, fmt.Errorf("write report: %w", err))
	}

	if playlistErr != nil {
		logger.Error("playlist operation failed", zap.Error(playlistErr))
		return newExitError(exitPartialFailure, playlistErr)
	}

	if rpt.Summary.MatchedCount+rpt.Summary.LowConfidenceCount < rpt.Summary.TotalInputLines {
		return newExitError(exitPartialFailure, fmt.Errorf("%d of %d songs did not match",
			rpt.Summary.TotalInputLines-rpt.Summary.MatchedCount-rpt.Summary.LowConfidenceCount,
			rpt.Summary.TotalInputLines))
	}

	return nil
}
