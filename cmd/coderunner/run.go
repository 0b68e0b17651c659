package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var configPath, paramsPath string

	cmd := &cobra.Command{
		Use:   "run <bundle-dir>",
		Short: "Execute a code bundle and print its result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagEntrypoint == "" {
				return fmt.Errorf("coderunner: --entrypoint is required")
			}

			bundle, err := loadBundleDir(args[0], flagEntrypoint)
			if err != nil {
				return err
			}
			language, err := parseLanguage(flagLanguage)
			if err != nil {
				return err
			}
			opts, err := buildOptions(cmd)
			if err != nil {
				return err
			}

			configurations, err := readJSONFileOrDefault(configPath, `{}`)
			if err != nil {
				return err
			}
			parameters, err := readJSONFileOrDefault(paramsPath, `{}`)
			if err != nil {
				return err
			}

			execCtx := newExecutionContext()
			r, err := newRunner(bundle, language, configurations, execCtx, opts)
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Run(cmd.Context(), nil, parameters, opts.Timeout)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON file with the tool configuration object")
	cmd.Flags().StringVar(&paramsPath, "params", "", "path to a JSON file with the run parameters object")
	return cmd
}

func readJSONFileOrDefault(path, fallback string) (json.RawMessage, error) {
	if path == "" {
		return json.RawMessage(fallback), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("coderunner: %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
