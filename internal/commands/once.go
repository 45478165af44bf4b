package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/web3-frozen/market-snapshot/internal/monitor"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cycle with the loop's renderers and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg, logger, cmd.OutOrStdout(), loopRenderers)
			if err != nil {
				return err
			}
			defer a.Close()
			return runSingle(cmd, a)
		},
	}
}

// runSingle runs one cycle and turns a non-ok outcome into an error so the
// exit status reflects it.
func runSingle(cmd *cobra.Command, a *app) error {
	res, err := a.engine.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	if res.Outcome != monitor.OutcomeOK {
		return fmt.Errorf("cycle %d %s: %w", res.Cycle, res.Outcome, res.Err)
	}
	return nil
}
