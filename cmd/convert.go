package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/geonames-cli/internal/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Fetch, normalize and serialize the cities archive",
	Args:  cobra.NoArgs,
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	if err := p.OpenSink(ctx, cfg.Export); err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			zap.L().Warn("close export sink", zap.Error(err))
		}
	}()

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	printer := message.NewPrinter(language.English)
	printer.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s in %v\n",
		res.Records, res.OutputPath, res.Duration.Round(time.Millisecond))
	if cfg.Export.Driver != "" {
		printer.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s table %q\n",
			res.Exported, cfg.Export.Driver, cfg.Export.Table)
	}
	return nil
}
