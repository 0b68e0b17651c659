package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcSpark/shinkai-code-runner/runner"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <bundle-dir>",
		Short: "Run the Python lint/type-check pipeline against a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagEntrypoint == "" {
				return fmt.Errorf("coderunner: --entrypoint is required")
			}
			bundle, err := loadBundleDir(args[0], flagEntrypoint)
			if err != nil {
				return err
			}
			opts, err := buildOptions(cmd)
			if err != nil {
				return err
			}

			execCtx := newExecutionContext()
			r, err := newRunner(bundle, runner.LanguagePython, json.RawMessage(`{}`), execCtx, opts)
			if err != nil {
				return err
			}
			defer r.Close()

			diagnostics, err := r.Check(cmd.Context())
			if err != nil {
				return err
			}
			if len(diagnostics) == 0 {
				fmt.Println("no findings")
				return nil
			}
			for _, d := range diagnostics {
				fmt.Println(d)
			}
			return nil
		},
	}
	return cmd
}

func newDefinitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definition <bundle-dir>",
		Short: "Extract a TypeScript tool's definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagEntrypoint == "" {
				return fmt.Errorf("coderunner: --entrypoint is required")
			}
			bundle, err := loadBundleDir(args[0], flagEntrypoint)
			if err != nil {
				return err
			}
			opts, err := buildOptions(cmd)
			if err != nil {
				return err
			}

			execCtx := newExecutionContext()
			r, err := newRunner(bundle, runner.LanguageTypeScript, json.RawMessage(`{}`), execCtx, opts)
			if err != nil {
				return err
			}
			defer r.Close()

			def, err := r.Definition(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(def, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}
