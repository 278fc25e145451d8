package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gaia-magnetics/magclient/internal/backend"
	"github.com/gaia-magnetics/magclient/internal/csvheader"
	"github.com/gaia-magnetics/magclient/internal/export"
	"github.com/gaia-magnetics/magclient/internal/jobrequest"
	"github.com/gaia-magnetics/magclient/internal/lifecycle"
	"github.com/gaia-magnetics/magclient/internal/plot"
	"github.com/gaia-magnetics/magclient/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type SubmitOptions struct {
	GlobalOptions

	File        string
	Scenario    string
	XColumn     string
	YColumn     string
	ValueColumn string
	Spacing     string

	Wait    bool
	Timeout time.Duration
	Out     string
	Plot    string
	XLSX    string
}

func DefaultSubmitOptions() *SubmitOptions {
	return &SubmitOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Scenario:      string(models.ScenarioExplicitGeometry),
		Timeout:       10 * time.Minute,
	}
}

func NewCmdSubmit() *cobra.Command {
	o := DefaultSubmitOptions()
	cmd := &cobra.Command{
		Use:   "submit --file FILE --x-column X --y-column Y --value-column V",
		Short: "Submit a survey CSV for processing.",
		Long: "Submit a survey CSV for processing and print the job id. With --wait, or when any of\n" +
			"--out, --plot or --xlsx is given, poll until the job finishes and save the requested outputs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *SubmitOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.File, "file", "f", o.File, "Survey CSV file")
	fs.StringVarP(&o.Scenario, "scenario", "s", o.Scenario, "Processing scenario: explicit_geometry or sparse_geometry (aliases: explicit, sparse, sparse_only)")
	fs.StringVar(&o.XColumn, "x-column", o.XColumn, "Column holding x coordinates")
	fs.StringVar(&o.YColumn, "y-column", o.YColumn, "Column holding y coordinates")
	fs.StringVar(&o.ValueColumn, "value-column", o.ValueColumn, "Column holding magnetic values")
	fs.StringVar(&o.Spacing, "spacing", o.Spacing, "Station spacing in metres (sparse geometry only)")
	fs.BoolVarP(&o.Wait, "wait", "w", o.Wait, "Wait for the job to finish")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Maximum time to wait for the job")
	fs.StringVar(&o.Out, "out", o.Out, "Save the raw result artifact to this path")
	fs.StringVar(&o.Plot, "plot", o.Plot, "Render the result plot to this PNG path")
	fs.StringVar(&o.XLSX, "xlsx", o.XLSX, "Export the result rows to this XLSX path")
}

func (o *SubmitOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.File == "" {
		return fmt.Errorf("--file is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	return nil
}

func (o *SubmitOptions) waits() bool {
	return o.Wait || o.Out != "" || o.Plot != "" || o.XLSX != ""
}

func (o *SubmitOptions) Run(ctx context.Context, out, errOut io.Writer) error {
	data, err := os.ReadFile(o.File)
	if err != nil {
		return fmt.Errorf("reading %s: %w", o.File, err)
	}

	// Header checks only apply when the file has a header line; an empty file is
	// reported by the builder.
	headers, err := csvheader.Extract(bytes.NewReader(data))
	if err != nil && !errors.Is(err, csvheader.ErrEmptyFile) {
		return fmt.Errorf("reading headers of %s: %w", o.File, err)
	}

	scenario, ok := models.ParseScenario(o.Scenario)
	if !ok {
		scenario = models.Scenario(o.Scenario)
	}
	req, err := jobrequest.Build(jobrequest.Input{
		File:     data,
		FileName: filepath.Base(o.File),
		Scenario: scenario,
		Mapping: models.ColumnMapping{
			XColumn:     o.XColumn,
			YColumn:     o.YColumn,
			ValueColumn: o.ValueColumn,
		},
		SpacingText: o.Spacing,
		Headers:     headers,
	})
	if err != nil {
		return err
	}
	for _, c := range req.Collisions() {
		fmt.Fprintf(errOut, "warning: column %q is selected more than once\n", c)
	}

	b := o.Backend()
	client := lifecycle.New(b,
		lifecycle.WithPollInterval(o.PollInterval),
		lifecycle.WithDegradedAfter(o.degradedAfter),
		lifecycle.WithLogger(o.Logger()),
		lifecycle.WithListener(progressPrinter(errOut)),
	)
	defer client.Cancel()

	jobID, err := client.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, jobID)

	if !o.waits() {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	if _, err := client.Wait(waitCtx); err != nil {
		return fmt.Errorf("waiting for job %s: %w", jobID, err)
	}

	return o.saveOutputs(ctx, b, client, jobID)
}

func (o *SubmitOptions) saveOutputs(ctx context.Context, b *backend.HTTPClient, client *lifecycle.Client, jobID string) error {
	if o.Out != "" {
		err := writeFile(o.Out, func(w io.Writer) error {
			_, err := b.Download(ctx, jobID, w)
			return err
		})
		if err != nil {
			return err
		}
	}

	if o.Plot == "" && o.XLSX == "" {
		return nil
	}
	rows, err := client.FetchResult(ctx)
	if err != nil {
		return err
	}
	if o.Plot != "" {
		err := writeFile(o.Plot, func(w io.Writer) error {
			return plot.Render(w, plot.Project(rows), plot.Options{})
		})
		if err != nil {
			return err
		}
	}
	if o.XLSX != "" {
		err := writeFile(o.XLSX, func(w io.Writer) error {
			return export.WriteXLSX(w, rows)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// progressPrinter reports lifecycle transitions and polling trouble on w.
func progressPrinter(w io.Writer) lifecycle.Listener {
	return lifecycle.ListenerFunc(func(e lifecycle.Event) {
		switch e.Type {
		case lifecycle.EventTransition:
			if e.JobID != "" {
				fmt.Fprintf(w, "job %s: %s -> %s\n", e.JobID, e.From, e.To)
			}
		case lifecycle.EventDegraded:
			fmt.Fprintf(w, "job %s: %v\n", e.JobID, e.Err)
		}
	})
}
