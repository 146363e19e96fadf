package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/report"
	"github.com/amartya2002/uptime-probe/store"
)

// NewReportCmd creates the "report" subcommand.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print count-based and time-weighted uptime from the request log",
		RunE:  runReport,
	}
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	s, err := store.Open(ctx, store.Config{Path: a.cfg.Store.Path, ReadOnly: true})
	if err != nil {
		return exitError(ExitStore, "Unable to read request log %s: %v", a.cfg.Store.Path, err)
	}
	defer s.Close()

	r, err := report.Build(ctx, s)
	if errors.Is(err, report.ErrNoData) {
		return report.RenderNoData(cmd.OutOrStdout())
	}
	if err != nil {
		a.logger.Error("Failed to build report", zap.String("db", a.cfg.Store.Path), zap.Error(err))
		return exitError(ExitStore, "%v", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return report.Render(cmd.OutOrStdout(), r)
}
