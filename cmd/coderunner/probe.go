package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcSpark/shinkai-code-runner/internal/probe"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether the container engine is installed and running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := probe.New(flagEngine)
			status := p.Probe(cmd.Context())
			fmt.Printf("%s: %s\n", p.Engine, status)
			if status != probe.Running {
				fmt.Println("runs will fall back to the host backend")
			}
			return nil
		},
	}
}
