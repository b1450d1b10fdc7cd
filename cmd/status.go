package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/server"
)

type statusReport struct {
	connector.CompositeStatus
	Health connector.Health `json:"health"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Polls every instance once and prints the composite status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer app.Close()

			report := statusReport{
				CompositeStatus: app.Status.CompositeStatus(cmd.Context()),
				Health:          app.Health.CompositeHealth(cmd.Context()),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode status: %w", err)
			}
			rt.logger.Debug("status printed", zap.String("status", report.Status), zap.String("health", string(report.Health)))
			return nil
		},
	}
}
