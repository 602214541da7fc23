package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sdg-cli/internal/config"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the effective indicator parameters as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printParams(os.Stdout, cfg.SDG)
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}

// printParams writes the run parameters under an "sdg" key, in the same
// shape sdg.yaml accepts.
func printParams(w io.Writer, c config.SDGConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]config.SDGConfig{"sdg": c}); err != nil {
		return eris.Wrap(err, "encode params")
	}
	return enc.Close()
}
