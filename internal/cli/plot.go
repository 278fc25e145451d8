package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaia-magnetics/magclient/internal/export"
	"github.com/gaia-magnetics/magclient/internal/plot"
	"github.com/gaia-magnetics/magclient/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type PlotOptions struct {
	Input  string
	Out    string
	Width  int
	Height int
	Title  string
}

func DefaultPlotOptions() *PlotOptions {
	return &PlotOptions{
		Width:  1024,
		Height: 480,
	}
}

// NewCmdPlot renders a saved result offline; it never contacts the API.
func NewCmdPlot() *cobra.Command {
	o := DefaultPlotOptions()
	cmd := &cobra.Command{
		Use:   "plot --input result.csv|result.json --out plot.png",
		Short: "Render a saved job result to PNG.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (o *PlotOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Input, "input", "i", o.Input, "Result artifact CSV or result JSON")
	fs.StringVar(&o.Out, "out", o.Out, "PNG output path")
	fs.IntVar(&o.Width, "width", o.Width, "Image width in pixels")
	fs.IntVar(&o.Height, "height", o.Height, "Image height in pixels")
	fs.StringVar(&o.Title, "title", o.Title, "Plot title")
}

func (o *PlotOptions) Validate(args []string) error {
	if o.Input == "" {
		return fmt.Errorf("--input is required")
	}
	if o.Out == "" {
		return fmt.Errorf("--out is required")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("--width and --height must be positive")
	}
	return nil
}

func (o *PlotOptions) Run(_ context.Context, out io.Writer) error {
	rows, err := readRows(o.Input)
	if err != nil {
		return err
	}

	p := plot.Project(rows)
	err = writeFile(o.Out, func(w io.Writer) error {
		return plot.Render(w, p, plot.Options{Width: o.Width, Height: o.Height, Title: o.Title})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d measured, %d predicted points written to %s\n", len(p.Measured), len(p.Predicted), o.Out)
	return nil
}

func readRows(path string) ([]models.ResultRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows []models.ResultRow
	if strings.EqualFold(filepath.Ext(path), ".json") {
		rows, err = export.ReadResultJSON(f)
	} else {
		rows, err = export.ReadArtifactCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}
