package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/dsa-planner/internal/compliance"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/ranking"
	"github.com/sells-group/dsa-planner/internal/session"
)

// -- overview --

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show dashboard counters for the loaded dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		ov := monitoring.NewCollector(cfg.Planner).Collect(sess.Snapshot())
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), ov)
		}
		formatOverview(cmd.OutOrStdout(), ov)
		return nil
	},
}

// -- hotspots --

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Rank monitored areas by density score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("limit")
		if n == 0 {
			n = cfg.Planner.HotspotLimit
		}
		hs := sess.Hotspots(n)
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), hs)
		}
		formatHotspots(cmd.OutOrStdout(), hs)
		return nil
	},
}

// -- gaps --

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List candidate sites farthest from any existing area",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("limit")
		if n == 0 {
			n = cfg.Planner.GapLimit
		}
		gaps := sess.CoverageGaps(n)
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), gaps)
		}
		formatGaps(cmd.OutOrStdout(), gaps)
		return nil
	},
}

// -- recommend --

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank proposals by adjusted score with their buffer check",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		recs := sess.Recommendations()
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), recs)
		}
		formatRecommendations(cmd.OutOrStdout(), recs)
		return nil
	},
}

// -- compliance --

var complianceCmd = &cobra.Command{
	Use:   "compliance <proposal-id>",
	Short: "Check one proposal against the protected-zone buffer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		check, err := sess.ProposalCompliance(args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), check)
		}
		formatCompliance(cmd.OutOrStdout(), check)
		return nil
	},
}

// -- score --

var scoreCmd = &cobra.Command{
	Use:   "score <area-id>",
	Short: "Explain the density score of one area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		score, err := sess.AreaScore(args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), score)
		}
		formatAreaScore(cmd.OutOrStdout(), score)
		return nil
	},
}

// -- alerts --

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate alert rules once against the loaded dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := initSession()
		if err != nil {
			return err
		}
		alerter := monitoring.NewAlerter(cfg.Planner, cfg.Monitoring)
		alerts := alerter.Evaluate(sess.Snapshot())
		if send, _ := cmd.Flags().GetBool("send"); send {
			sent := alerter.SendAlerts(cmd.Context(), alerts)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Delivered %d of %d alerts.\n", sent, len(alerts))
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), alerts)
		}
		formatAlerts(cmd.OutOrStdout(), alerts)
		return nil
	},
}

func init() {
	hotspotsCmd.Flags().Int("limit", 0, "number of areas to list (default from config)")
	gapsCmd.Flags().Int("limit", 0, "number of candidate sites to list (default from config)")
	alertsCmd.Flags().Bool("send", false, "deliver alerts to the configured webhook")

	for _, c := range []*cobra.Command{overviewCmd, hotspotsCmd, gapsCmd, recommendCmd, complianceCmd, scoreCmd, alertsCmd} {
		c.Flags().Bool("json", false, "print JSON instead of a table")
		rootCmd.AddCommand(c)
	}
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// meters renders a distance rounded to whole meters, or "-" when infinite.
func meters(v float64) string {
	if math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.0fm", v)
}

func formatOverview(out io.Writer, ov monitoring.Overview) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Active areas:\t%d\n", ov.ActiveAreas)
	_, _ = fmt.Fprintf(w, "Protected zones:\t%d\n", ov.ProtectedZones)
	_, _ = fmt.Fprintf(w, "Overcrowded:\t%d\n", ov.Overcrowded)
	_, _ = fmt.Fprintf(w, "Approved proposals:\t%d\n", ov.ApprovedProposals)
	_, _ = fmt.Fprintf(w, "Non-compliant proposals:\t%d\n", ov.NonCompliant)
	_, _ = fmt.Fprintf(w, "Risk flags:\t%d\n", ov.RiskFlags)
	_, _ = fmt.Fprintf(w, "Average AQI:\t%d\n", ov.AverageAQI)
	if ov.WorstSensor != nil {
		_, _ = fmt.Fprintf(w, "Worst sensor:\t%s (%d)\n", ov.WorstSensor.Name, ov.WorstSensor.AQI)
	}
	if ov.PressureDistrict != "" {
		_, _ = fmt.Fprintf(w, "Pressure district:\t%s\n", ov.PressureDistrict)
	}
	_ = w.Flush()
}

func formatHotspots(out io.Writer, hs []ranking.Hotspot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tID\tNAME\tDISTRICT\tOCCUPANCY\tSCORE\tTIER")
	_, _ = fmt.Fprintln(w, "----\t--\t----\t--------\t---------\t-----\t----")
	for i, h := range hs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%.2f\t%s\n",
			i+1, h.Area.ID, h.Area.Name, h.Area.District,
			h.Area.Occupancy, h.Area.Capacity, h.Score, h.Tier)
	}
	_ = w.Flush()
}

func formatGaps(out io.Writer, gaps []ranking.Gap) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SITE\tNEAREST\tDISTANCE")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------")
	for _, g := range gaps {
		nearest := g.NearestAreaID
		if nearest == "" {
			nearest = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", g.Site.Name, nearest, meters(g.DistanceMeters))
	}
	_ = w.Flush()
}

func formatRecommendations(out io.Writer, recs []ranking.Recommendation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tDISTRICT\tSTATUS\tSCORE\tADJUSTED\tBUFFER")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t------\t-----\t--------\t------")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			r.Proposal.ID, r.Proposal.Name, r.Proposal.District, r.Proposal.Status,
			r.Proposal.Score, r.AdjustedScore, bufferLabel(r.Compliance))
	}
	_ = w.Flush()
}

func formatCompliance(out io.Writer, check session.ProposalCheck) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Proposal:\t%s (%s)\n", check.Proposal.Name, check.Proposal.ID)
	_, _ = fmt.Fprintf(w, "Buffer:\t%s\n", bufferLabel(check.Compliance))
	if check.Compliance.NearestZoneID != "" {
		_, _ = fmt.Fprintf(w, "Nearest zone:\t%s\n", check.Compliance.NearestZoneID)
	}
	_ = w.Flush()
}

func formatAreaScore(out io.Writer, s session.AreaScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Area:\t%s (%s)\n", s.Area.Name, s.Area.ID)
	_, _ = fmt.Fprintf(w, "Occupancy ratio:\t%.2f\n", s.Breakdown.OccupancyRatio)
	_, _ = fmt.Fprintf(w, "Nearest sensor:\t%s (AQI %d, %s)\n", s.Breakdown.SensorID, s.Breakdown.SensorAQI, meters(s.Breakdown.SensorMeters))
	_, _ = fmt.Fprintf(w, "AQI norm:\t%.2f\n", s.Breakdown.AQINorm)
	_, _ = fmt.Fprintf(w, "Score:\t%.2f (%s)\n", s.Breakdown.Score, s.Tier)
	_ = w.Flush()
}

func formatAlerts(out io.Writer, alerts []monitoring.Alert) {
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "No alerts.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEVERITY\tTYPE\tSUBJECT\tMESSAGE")
	_, _ = fmt.Fprintln(w, "--------\t----\t-------\t-------")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Severity, a.Type, a.SubjectID, a.Message)
	}
	_ = w.Flush()
}

func bufferLabel(r compliance.Result) string {
	if r.Unconstrained() {
		return "PASS (no protected zones)"
	}
	if r.Compliant {
		return "PASS (" + meters(r.MinDistanceMeters) + ")"
	}
	return "FAIL (" + meters(r.MinDistanceMeters) + ")"
}
