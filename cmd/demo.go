package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	coremetrics "github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/core/scanner"
	"github.com/freightpool/absorb/infra/logger"
	"github.com/freightpool/absorb/infra/store"
	"github.com/freightpool/absorb/internal/eventbus"
	"github.com/freightpool/absorb/simulator"
)

var demoTrucks int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Scan a generated demo fleet and print the detected opportunities",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().IntVar(&demoTrucks, "trucks", 6, "number of demo trucks")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	st := store.NewMemoryStore()
	simulator.GenerateFleet(simulator.Config{Trucks: demoTrucks}).Seed(st)

	bus := eventbus.New()
	defer bus.Close()
	events := bus.Subscribe()

	sc, err := scanner.New(st, bus, scanner.Config{}, logger.New("demo"), coremetrics.NopSink{})
	if err != nil {
		return err
	}
	opps, err := sc.ScanOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%d opportunities detected\n", len(opps))
	for _, o := range opps {
		fmt.Printf("  %s  routes %s <- %s  hub %s  saves %.1f km / %.1f kg CO2\n",
			o.ID, o.Route1ID, o.Route2ID, o.NearestHubID, o.DistanceSavedKm, o.CarbonSavedKg)
	}
	for {
		select {
		case m := <-events:
			fmt.Printf("event %s: %+v\n", m.Topic, m.Event)
		default:
			return nil
		}
	}
}
