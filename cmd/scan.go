package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freightpool/absorb/app"
	"github.com/freightpool/absorb/config"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one proximity scan cycle and print detected opportunities",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	opps, err := svc.Scanner.ScanOnce(cmd.Context())
	if err != nil {
		return err
	}
	if len(opps) == 0 {
		fmt.Println("no opportunities detected")
		return nil
	}
	for _, o := range opps {
		fmt.Printf("%s  routes %s <- %s  hub %s  saves %.1f km / %.1f kg CO2\n",
			o.ID, o.Route1ID, o.Route2ID, o.NearestHubID, o.DistanceSavedKm, o.CarbonSavedKg)
	}
	return nil
}
