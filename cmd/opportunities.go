package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/freightpool/absorb/app"
	"github.com/freightpool/absorb/config"
)

var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "List the absorption opportunities currently awaiting action",
	RunE:  runOpportunities,
}

func init() {
	rootCmd.AddCommand(opportunitiesCmd)
}

func runOpportunities(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	opps, err := svc.Store.ListActiveOpportunities(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	if len(opps) == 0 {
		fmt.Println("no active opportunities")
		return nil
	}
	for _, o := range opps {
		fmt.Printf("%s  %s  routes %s <- %s  hub %s  expires %s\n",
			o.ID, o.Status, o.Route1ID, o.Route2ID, o.NearestHubID, o.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
