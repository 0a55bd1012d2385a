// heatplan prints the heats a regeneration would create for a YAML fixture, without
// touching a database.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	_ "time/tzdata"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var fixturePath string
	var lanes bool

	flagSet := pflag.NewFlagSet("heatplan", pflag.ContinueOnError)
	flagSet.StringVarP(&fixturePath, "fixture", "f", "", "competition fixture (YAML)")
	flagSet.BoolVar(&lanes, "lanes", false, "list the entry in every lane")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if fixturePath == "" {
		return fmt.Errorf("--fixture is required")
	}

	fixture, err := LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	dry, err := fixture.Plan()
	if err != nil {
		return err
	}
	return printDryRun(stdout, dry, lanes)
}

func printDryRun(w io.Writer, dry *DryRun, lanes bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKOUT\tSTART\tFILLED\tTICKETS")
	for _, h := range dry.Heats {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n",
			h.Workout, h.Start.In(dry.Location).Format("15:04"), len(h.Lanes), h.Limit, strings.Join(h.Tickets, ", "))
		if lanes {
			for i, name := range h.Lanes {
				fmt.Fprintf(tw, "\t\t%d\t%s\n", i+1, name)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, name := range dry.OverCap {
		fmt.Fprintf(w, "warning: %s exceeds total_heats_per_workout\n", name)
	}
	return nil
}
