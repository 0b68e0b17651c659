// Command coderunner is a thin CLI wrapper around the runner package,
// for manually exercising a code bundle from a directory on disk. It
// is a consumer of the core, not part of it.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dcSpark/shinkai-code-runner/internal/config"
	"github.com/dcSpark/shinkai-code-runner/internal/logmirror"
	"github.com/dcSpark/shinkai-code-runner/internal/metrics"
)

var (
	flagStorageRoot string
	flagLanguage    string
	flagBackend     string
	flagEntrypoint  string
	flagTimeout     string
	flagImage       string
	flagEngine      string
	flagRedisAddr   string
	flagMounts      []string
	flagAssets      []string

	loadedConfig     config.Config
	metricsCollector *metrics.Collector
	logMirror        *logmirror.Mirror
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("coderunner: loading config", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	loadedConfig = cfg
	metricsCollector = metrics.NewCollector()

	root := &cobra.Command{
		Use:   "coderunner",
		Short: "Run a sandboxed TypeScript or Python code bundle",
		// Built here, not above, so --redis-addr has already been
		// parsed by the time the mirror is constructed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logMirror = logmirror.New(flagRedisAddr, 24*time.Hour)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagStorageRoot, "storage-root", os.TempDir(), "root directory for execution storage")
	root.PersistentFlags().StringVar(&flagLanguage, "language", "typescript", "typescript or python")
	root.PersistentFlags().StringVar(&flagBackend, "backend", "auto", "auto, host, or container")
	root.PersistentFlags().StringVar(&flagEntrypoint, "entrypoint", "", "entrypoint file name within the bundle directory")
	root.PersistentFlags().StringVar(&flagTimeout, "timeout", "5m", "wall-clock execution timeout")
	root.PersistentFlags().StringVar(&flagImage, "image", cfg.ContainerImage, "container image override")
	root.PersistentFlags().StringVar(&flagEngine, "engine", cfg.ContainerEngine, "container engine binary: docker or podman")
	root.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", cfg.RedisAddr, "optional Redis address to mirror logs and results to")
	root.PersistentFlags().StringArrayVar(&flagMounts, "mount", nil, "host file exposed read-write to the child (repeatable)")
	root.PersistentFlags().StringArrayVar(&flagAssets, "asset", nil, "host file exposed read-only as an asset (repeatable)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckCommand())
	root.AddCommand(newDefinitionCommand())
	root.AddCommand(newProbeCommand())

	if err := root.Execute(); err != nil {
		log.Error("coderunner failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
