package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type StatusOptions struct {
	GlobalOptions

	JobID  string
	Output string
}

func DefaultStatusOptions() *StatusOptions {
	return &StatusOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStatus() *cobra.Command {
	o := DefaultStatusOptions()
	cmd := &cobra.Command{
		Use:   "status --job-id ID",
		Short: "Show the status of a processing job.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *StatusOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.JobID, "job-id", "j", o.JobID, "Job id returned by submit")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json).")
}

func (o *StatusOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.JobID == "" {
		return fmt.Errorf("--job-id is required")
	}
	if o.Output != "" && o.Output != jsonFormat {
		return fmt.Errorf("output format must be %s", jsonFormat)
	}
	return nil
}

func (o *StatusOptions) Run(ctx context.Context, out io.Writer) error {
	b := o.Backend()
	status, err := b.JobStatus(ctx, o.JobID)
	if err != nil {
		return fmt.Errorf("reading status of job %s: %w", o.JobID, err)
	}

	if o.Output == jsonFormat {
		return json.NewEncoder(out).Encode(map[string]any{
			"job_id":       o.JobID,
			"status":       status,
			"download_url": b.DownloadURL(o.JobID),
		})
	}
	fmt.Fprintln(out, status)
	return nil
}
