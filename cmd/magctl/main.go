package main

import (
	"log/slog"
	"os"

	"github.com/gaia-magnetics/magclient/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	command := NewMagctlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewMagctlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "magctl [flags] [options]",
		Short: "magctl submits magnetic survey jobs to the GAIA processing API.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdHeaders())
	cmd.AddCommand(cli.NewCmdSubmit())
	cmd.AddCommand(cli.NewCmdStatus())
	cmd.AddCommand(cli.NewCmdPlot())

	return cmd
}
