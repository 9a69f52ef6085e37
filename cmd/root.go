package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/config"
	"github.com/sells-group/geonames-cli/internal/pipeline"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "geonames-cli",
	Short: "Convert the GeoNames cities dump to JSON",
	Long: "Downloads a GeoNames cities archive, extracts the cities*.txt member, " +
		"normalizes it to semicolon-delimited text and writes every row as a JSON record.",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFrom(viper.GetViper(), cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: runConvert,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	f.String("url", "", "archive URL (overrides source.url)")
	f.String("work-dir", "", "directory for intermediate and output files")
	f.String("output", "", "output document name")
	f.String("format", "", "output format: json or yaml")

	for key, flag := range map[string]string{
		"source.url":     "url",
		"paths.work_dir": "work-dir",
		"paths.output":   "output",
		"output.format":  "format",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

// reportError writes the user-facing failure message for err.
func reportError(w io.Writer, err error) {
	if pipeline.StageOf(err) == pipeline.StageFetch {
		fmt.Fprintln(w, "File not found on remote server. More info follows:")
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(pipeline.ExitCode(err))
	}
}
