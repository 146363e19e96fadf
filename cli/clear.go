package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/store"
)

// NewClearCmd creates the "clear" subcommand.
func NewClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every record from the request log",
		RunE:  runClear,
	}
}

func runClear(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	s, err := store.Open(ctx, store.Config{Path: a.cfg.Store.Path})
	if err != nil {
		return exitError(ExitStore, "Unable to open request log %s: %v", a.cfg.Store.Path, err)
	}
	defer s.Close()

	res, err := s.Clear(ctx)
	if err != nil {
		return exitError(ExitStore, "%v", err)
	}
	a.logger.Info("Request log cleared", zap.String("db", a.cfg.Store.Path), zap.Int("deleted", res.Before-res.After))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Records before: %d\n", res.Before)
	fmt.Fprintf(out, "Records after: %d\n", res.After)
	return nil
}
