package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smith/internal/ux"
	"github.com/felixgeelhaar/smith/internal/version"
)

var (
	versionJSON   bool
	versionFormat string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the smith build",
	Long: `Print the smith release, the commit it was built from, and the Go
toolchain and platform it targets.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format := versionFormat
		if versionJSON {
			format = "json"
		}
		out := cmd.OutOrStdout()
		formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: out, NoColor: ux.NoColor(out)})
		if err != nil {
			return err
		}
		return formatter.Format(version.GetInfo())
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "output format: text, json or yaml")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "shorthand for --format json")
	rootCmd.AddCommand(versionCmd)
}
