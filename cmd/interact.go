package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dsa-planner/internal/agent"
	"github.com/sells-group/dsa-planner/internal/layers"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/session"
	"github.com/sells-group/dsa-planner/internal/simulation"
)

// -- review --

var reviewCmd = &cobra.Command{
	Use:   "review <proposal-id> <status>",
	Short: "Set a proposal status and show the resulting ranking",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := model.ParseProposalStatus(args[1])
		if err != nil {
			return err
		}
		sess, err := initSession()
		if err != nil {
			return err
		}
		ev, err := sess.SetProposalStatus(args[0], status)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), ev)
		}
		formatReviewEvent(cmd.OutOrStdout(), ev)
		formatRecommendations(cmd.OutOrStdout(), sess.Recommendations())
		return nil
	},
}

// -- ask --

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the planning assistant",
	Long:  "Answers one question given as arguments, or reads questions line by line from stdin when none is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		a := agent.New(sess, cfg.Planner)
		if len(args) > 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), a.Respond(strings.Join(args, " ")).Text)
			return nil
		}
		return converse(cmd.InOrStdin(), cmd.OutOrStdout(), a)
	},
}

// converse answers each non-empty input line until EOF.
func converse(in io.Reader, out io.Writer, a *agent.Agent) error {
	_, _ = fmt.Fprintln(out, agent.Greeting)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		_, _ = fmt.Fprintln(out, a.Respond(line).Text)
		_, _ = fmt.Fprintln(out)
	}
	if err := sc.Err(); err != nil {
		return eris.Wrap(err, "ask: read input")
	}
	return nil
}

// -- layers --

var layersCmd = &cobra.Command{
	Use:   "layers [name]",
	Short: "Export a map layer as GeoJSON",
	Long:  "Without arguments, lists the available layers. With a layer name, writes the layer as a GeoJSON FeatureCollection to stdout or --out.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, n := range layers.All() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}
		sess, err := initSession()
		if err != nil {
			return err
		}
		fc, err := layers.NewBuilder(cfg.Planner).Build(layers.Name(args[0]), sess.Snapshot())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "layers: create %s", path)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeJSON(out, fc)
	},
}

// -- simulate --

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulation ticks offline and print the overview after each",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		simCfg := cfg.Simulation
		if seed, _ := cmd.Flags().GetUint64("seed"); seed != 0 {
			simCfg.Seed = seed
		}
		sim, err := simulation.New(sess, simCfg)
		if err != nil {
			return err
		}
		ticks, _ := cmd.Flags().GetInt("ticks")
		if ticks <= 0 {
			return eris.New("simulate: --ticks must be > 0")
		}
		return runTicks(cmd.OutOrStdout(), sess, sim, monitoring.NewCollector(cfg.Planner), ticks)
	},
}

func runTicks(out io.Writer, sess *session.Session, sim *simulation.Simulator, c *monitoring.Collector, ticks int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICK\tOVERCROWDED\tAVG_AQI\tWORST\tPRESSURE\tRISK_FLAGS")
	_, _ = fmt.Fprintln(w, "----\t-----------\t-------\t-----\t--------\t----------")
	for range ticks {
		if err := sim.Step(); err != nil {
			return err
		}
		ov := c.Collect(sess.Snapshot())
		worst := "-"
		if ov.WorstSensor != nil {
			worst = fmt.Sprintf("%s (%d)", ov.WorstSensor.ID, ov.WorstSensor.AQI)
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%d\n",
			ov.Tick, ov.Overcrowded, ov.AverageAQI, worst, ov.PressureDistrict, ov.RiskFlags)
	}
	return w.Flush()
}

func formatReviewEvent(out io.Writer, ev session.ReviewEvent) {
	_, _ = fmt.Fprintf(out, "%s: %s -> %s\n\n", ev.ProposalID, ev.From, ev.To)
}

func init() {
	names := make([]string, 0, len(model.AllStatuses()))
	for _, st := range model.AllStatuses() {
		names = append(names, strings.ToLower(string(st)))
	}
	reviewCmd.Long = fmt.Sprintf("Applies a reviewer decision (%s) to the in-memory session and prints the updated recommendations. Changes are not persisted.",
		strings.Join(names, ", "))

	reviewCmd.Flags().Bool("json", false, "print the review event as JSON")
	layersCmd.Flags().String("out", "", "write GeoJSON to this file instead of stdout")
	simulateCmd.Flags().Int("ticks", 10, "number of ticks to run")
	simulateCmd.Flags().Uint64("seed", 0, "random seed (default from config, 0 for random)")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(layersCmd)
	rootCmd.AddCommand(simulateCmd)
}
