package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dashlytics/compute/internal/capability"
)

type CapabilitiesOptions struct {
	OutputFormat string
}

func NewCapabilitiesCmd(loadConfig ConfigLoader) *cobra.Command {
	opts := &CapabilitiesOptions{}

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Probe and report acceleration capabilities",
		Long: `Probe the runtime for acceleration features (SIMD, threads, bulk
memory, reference types, exception handling) and report the resulting
performance tier.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapabilities(cmd, opts, loadConfig)
		},
	}

	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")

	return cmd
}

func runCapabilities(cmd *cobra.Command, opts *CapabilitiesOptions, loadConfig ConfigLoader) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}

	caps := capability.NewDetector(logger).Detect(cmd.Context())

	w := io.Writer(cmd.OutOrStdout())
	if opts.OutputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(caps)
	}

	fmt.Fprintln(w, "Acceleration Capabilities:")
	fmt.Fprintf(w, "  Supported:          %t\n", caps.IsSupported)
	fmt.Fprintf(w, "  SIMD:               %t\n", caps.HasSIMD)
	fmt.Fprintf(w, "  Threads:            %t\n", caps.HasThreads)
	fmt.Fprintf(w, "  Bulk Memory:        %t\n", caps.HasBulkMemory)
	fmt.Fprintf(w, "  Reference Types:    %t\n", caps.HasReferenceTypes)
	fmt.Fprintf(w, "  Exception Handling: %t\n", caps.HasExceptionHandling)
	fmt.Fprintf(w, "  Performance Tier:   %s\n", caps.Performance)
	return nil
}
