package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gaia-magnetics/magclient/internal/csvheader"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type HeadersOptions struct {
	GlobalOptions

	File   string
	Output string
}

func DefaultHeadersOptions() *HeadersOptions {
	return &HeadersOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdHeaders() *cobra.Command {
	o := DefaultHeadersOptions()
	cmd := &cobra.Command{
		Use:   "headers --file FILE",
		Short: "List the column names of a survey CSV.",
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

func (o *HeadersOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.File, "file", "f", o.File, "Survey CSV file")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json). Default is one name per line.")
}

func (o *HeadersOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.File == "" {
		return fmt.Errorf("--file is required")
	}
	if o.Output != "" && o.Output != jsonFormat {
		return fmt.Errorf("output format must be %s", jsonFormat)
	}
	return nil
}

func (o *HeadersOptions) Run(_ context.Context, out io.Writer) error {
	headers, err := csvheader.ExtractFile(o.File)
	if err != nil {
		return fmt.Errorf("reading headers of %s: %w", o.File, err)
	}

	if o.Output == jsonFormat {
		return json.NewEncoder(out).Encode(headers)
	}
	for _, h := range headers {
		fmt.Fprintln(out, h)
	}
	return nil
}
