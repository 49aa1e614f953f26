package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/core"
	"github.com/joseph-ayodele/extract-tracker/internal/export"
	"github.com/joseph-ayodele/extract-tracker/internal/ingest"
	"github.com/joseph-ayodele/extract-tracker/internal/intake"
	"github.com/joseph-ayodele/extract-tracker/internal/poller"
	"github.com/joseph-ayodele/extract-tracker/internal/present"
	"github.com/joseph-ayodele/extract-tracker/internal/progress"
	"github.com/joseph-ayodele/extract-tracker/internal/repository"
)

type rootFlags struct {
	apiURL    string
	ledger    string
	logLevel  string
	logFormat string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var flags rootFlags
	var a *app

	root := &cobra.Command{
		Use:           "extractor",
		Short:         "Submit documents to the extraction service and track their jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := common.LoadConfig()
			if flags.apiURL != "" {
				cfg.API.BaseURL = flags.apiURL
			}
			if flags.ledger != "" {
				cfg.Ledger.Path = flags.ledger
			}
			if flags.logLevel != "" {
				cfg.Log.Level = flags.logLevel
			}
			if flags.logFormat != "" {
				cfg.Log.Format = flags.logFormat
			}
			var err error
			a, err = newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "extraction service base URL (overrides EXTRACTOR_API_URL)")
	pf.StringVar(&flags.ledger, "ledger", "", "submission ledger path (overrides EXTRACTOR_LEDGER_PATH)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "text|json (overrides LOG_FORMAT)")

	getApp := func() *app { return a }
	root.AddCommand(
		newSubmitCmd(getApp),
		newStatusCmd(getApp),
		newListCmd(getApp),
		newHistoryCmd(getApp),
		newDownloadCmd(getApp),
		newExportCmd(getApp),
		newIngestCmd(getApp),
		newDoctorCmd(getApp),
	)
	return root
}

// processor builds a file processor for one command run; the caller shuts the registry down.
func (a *app) processor(ctx context.Context, wait, useLedger bool, exportDir string, onUpload func(intake.State)) (*core.Processor, *poller.Registry, error) {
	reg := a.registry()
	opts := []core.Option{
		core.WithLimits(a.cfg.Intake.AcceptedTypes, a.cfg.Intake.MaxUploadMB),
		core.WithSimulator(progress.NewSimulator(a.cfg.Intake.ProgressTick)),
		core.WithWait(wait),
	}
	if onUpload != nil {
		opts = append(opts, core.WithUploadListener(onUpload))
	}
	if useLedger {
		ledger, err := a.ledger(ctx)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, core.WithLedger(ledger))
	}
	if exportDir != "" {
		opts = append(opts, core.WithExport(export.NewService(a.logger), exportDir))
	}
	return core.NewProcessor(a.logger, a.client, reg, a.notifier, opts...), reg, nil
}

func shutdown(ctx context.Context, reg *poller.Registry) {
	_ = reg.Shutdown(context.WithoutCancel(ctx))
}

func newSubmitCmd(getApp func() *app) *cobra.Command {
	var (
		wait      bool
		force     bool
		noLedger  bool
		exportDir string
		maxMB     float64
		types     string
	)
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Validate and upload one document, optionally waiting for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			if maxMB > 0 {
				a.cfg.Intake.MaxUploadMB = maxMB
			}
			if t := splitTypes(types); len(t) > 0 {
				a.cfg.Intake.AcceptedTypes = t
			}

			file, err := intake.FromPath(args[0])
			if err != nil {
				return err
			}
			a.render.Candidate(file)

			printProgress := progressPrinter(a.errOut)
			proc, reg, err := a.processor(ctx, wait || exportDir != "", !noLedger, exportDir, func(s intake.State) {
				if s.Uploading || s.Progress == progress.Complete {
					printProgress(s.Progress)
				}
			})
			if err != nil {
				return err
			}
			defer shutdown(ctx, reg)

			res, err := proc.ProcessFile(ctx, core.Request{Path: args[0], Force: force})
			if res != nil && res.JobID != "" {
				fmt.Fprintf(a.out, "Job ID: %s\n", res.JobID)
			}
			if err != nil {
				return markReported(err)
			}
			if res.Deduplicated {
				fmt.Fprintf(a.out, "This file was already submitted as job %s (use --force to submit again)\n", res.JobID)
			}
			if res.View != nil && res.View.Snapshot != nil {
				a.render.Snapshot(*res.View.Snapshot)
			}
			if res.ExportPath != "" {
				fmt.Fprintf(a.out, "Workbook: %s\n", res.ExportPath)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&wait, "wait", "w", false, "poll until the job completes or fails")
	f.BoolVar(&force, "force", false, "submit even if this content was submitted before")
	f.BoolVar(&noLedger, "no-ledger", false, "do not consult or update the submission ledger")
	f.StringVar(&exportDir, "export", "", "write an XLSX workbook of the results into this directory (implies waiting)")
	f.Float64Var(&maxMB, "max-mb", 0, "override the maximum upload size in MB")
	f.StringVar(&types, "types", "", "override the accepted media types (comma separated)")
	return cmd
}

func newStatusCmd(getApp func() *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current state of a job, or follow it until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			if !watch {
				snap, err := a.client.Query(ctx, args[0])
				if err != nil {
					return err
				}
				a.render.Snapshot(snap)
				return nil
			}

			reg := a.registry()
			defer shutdown(ctx, reg)
			p := reg.Attach(ctx, args[0])
			defer p.Close()

			var last poller.View
			for v := range p.Updates() {
				last = v
				if v.Snapshot != nil && !v.State.IsTerminal() {
					line := present.StatusLabel(v.Snapshot.Status)
					if pct := v.Snapshot.ProgressPercent(); pct >= 0 {
						line += " " + present.ProgressBar(int(pct), 20)
					}
					fmt.Fprintln(a.errOut, line)
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if last.Snapshot != nil {
				a.render.Snapshot(*last.Snapshot)
			}
			return markReported(last.Err)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the job completes or fails")
	return cmd
}

func newListCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the jobs known to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			jobs, err := a.client.List(cmd.Context())
			if err != nil {
				return err
			}
			a.render.List(jobs)
			return nil
		},
	}
}

func newHistoryCmd(getApp func() *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List files recorded in the local submission ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			subs, err := ledger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			a.render.Submissions(subs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows to show")
	return cmd
}

func newDownloadCmd(getApp func() *app) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the CSV or JSON export of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			snap, err := a.client.Query(ctx, args[0])
			if err != nil {
				return err
			}
			location, err := downloadLocation(snap.DownloadURLs, format)
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s.%s", args[0], format)
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := a.client.Download(ctx, location, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(a.out, "Saved %s to %s\n", humanize.Bytes(uint64(n)), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default <job-id>.<format>)")
	return cmd
}

func newExportCmd(getApp func() *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Write the results of a completed job to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			snap, err := a.client.Query(ctx, args[0])
			if err != nil {
				return err
			}
			if snap.Status != constants.JobStatusCompleted {
				return common.NewAppError("EXPORT_ERROR",
					fmt.Sprintf("job %s is %s, results are only available once it is completed", args[0], present.StatusLabel(snap.Status)),
					common.ErrInvalidInput)
			}
			path, err := export.NewService(a.logger).WriteXLSX(ctx, snap, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Workbook: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	return cmd
}

func newIngestCmd(getApp func() *app) *cobra.Command {
	var (
		force      bool
		wait       bool
		showHidden bool
		exportDir  string
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Submit every accepted document under a directory, skipping content already submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			proc, reg, err := a.processor(ctx, wait || exportDir != "", true, exportDir, nil)
			if err != nil {
				return err
			}
			defer shutdown(ctx, reg)

			results, stats, err := ingest.NewUsecase(proc, a.cfg.Intake.AcceptedTypes, a.logger).
				IngestDirectory(ctx, args[0], !showHidden, force)
			for _, r := range results {
				switch {
				case r.Err != "":
					fmt.Fprintf(a.out, "FAILED  %s: %s\n", r.Path, r.Err)
				case r.Deduplicated:
					fmt.Fprintf(a.out, "SKIPPED %s (job %s)\n", r.Path, r.JobID)
				default:
					fmt.Fprintf(a.out, "OK      %s (job %s)\n", r.Path, r.JobID)
				}
			}
			fmt.Fprintf(a.out, "%d scanned, %d matched, %d submitted or tracked, %d already submitted, %d failed\n",
				stats.Scanned, stats.Matched, stats.Succeeded-stats.Deduplicated, stats.Deduplicated, stats.Failed)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&force, "force", false, "submit even if the content was submitted before")
	f.BoolVarP(&wait, "wait", "w", false, "track each job until it completes or fails")
	f.BoolVar(&showHidden, "hidden", false, "include hidden files and directories")
	f.StringVar(&exportDir, "export", "", "write an XLSX workbook per completed job into this directory")
	return cmd
}

func newDoctorCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, service reachability and the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			ctx := cmd.Context()
			fmt.Fprintf(a.out, "api:      %s\n", a.cfg.API.BaseURL)
			fmt.Fprintf(a.out, "accepts:  %s up to %sMB\n", intake.ReadableTypes(a.cfg.Intake.AcceptedTypes), humanize.Ftoa(a.cfg.Intake.MaxUploadMB))
			fmt.Fprintf(a.out, "polling:  every %s\n", a.cfg.Poll.Interval)

			failed := false
			if status, err := a.client.Health(ctx); err != nil {
				failed = true
				fmt.Fprintf(a.out, "service:  unreachable (%v)\n", err)
			} else {
				fmt.Fprintf(a.out, "service:  %s\n", status)
			}

			if _, err := a.ledger(ctx); err != nil {
				failed = true
				fmt.Fprintf(a.out, "ledger:   %s unavailable (%v)\n", a.cfg.Ledger.Path, err)
			} else if err := repository.HealthCheck(ctx, a.ledgerDB, 0, a.logger); err != nil {
				failed = true
				fmt.Fprintf(a.out, "ledger:   %s unavailable (%v)\n", a.cfg.Ledger.Path, err)
			} else {
				fmt.Fprintf(a.out, "ledger:   %s ok\n", a.cfg.Ledger.Path)
			}

			if failed {
				return common.NewAppError("DOCTOR", "one or more checks failed", common.ErrInternal)
			}
			return nil
		},
	}
}
