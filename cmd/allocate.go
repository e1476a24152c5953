package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freightpool/absorb/app"
	"github.com/freightpool/absorb/config"
)

var allocateOperator string

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate an operator's pending deliveries onto available trucks",
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().StringVarP(&allocateOperator, "operator", "o", "", "operator id (required)")
	_ = allocateCmd.MarkFlagRequired("operator")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	routes, err := svc.Allocator.Allocate(cmd.Context(), allocateOperator)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Println("nothing to allocate")
		return nil
	}
	for _, r := range routes {
		fmt.Printf("route %s  truck %s  deliveries %d  load %.1f kg / %.1f l\n",
			r.ID, r.TruckID, len(r.DeliveryIDs), r.TotalWeightKg, r.TotalVolumeL)
	}
	return nil
}
