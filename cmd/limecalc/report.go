package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agrolime/liming-portal-backend/internal/calculator"
	"agrolime/liming-portal-backend/internal/planning"
)

var reportReq calculator.Request

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Classify a soil reading and project the liming applications",
	Long: `Classifies every nutrient of the reading, computes the CaO need for the
target pH, selects the product by the Mg category and splits the need into
applications that respect the single-dose cap of the soil texture.`,
	Example: `  limecalc report --texture medium --ph 5.0 --mg 90 --area 12.5`,
	Args:    cobra.NoArgs,
	RunE:    runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportReq.SoilTexture, "texture", "", "Soil texture: light, medium or heavy")
	f.StringVar(&reportReq.LandUse, "land-use", "arable", "Land use: arable or grassland")
	f.Float64Var(&reportReq.AreaHa, "area", 1, "Parcel area in hectares")
	f.Float64Var(&reportReq.PH, "ph", 0, "Soil pH (KCl)")
	f.Float64Var(&reportReq.P, "p", 0, "Phosphorus, mg/kg")
	f.Float64Var(&reportReq.K, "k", 0, "Potassium, mg/kg")
	f.Float64Var(&reportReq.Mg, "mg", 0, "Magnesium, mg/kg")
	f.Float64Var(&reportReq.Ca, "ca", 0, "Calcium, mg/kg")
	f.Float64Var(&reportReq.S, "s", 0, "Sulphur, mg/kg")
	f.IntVar(&reportReq.StartYear, "start-year", 0, "First application year (default: current year)")
	f.IntVar(&reportReq.SlotsPerYear, "slots", 0, "Application slots per year (default: methodology)")
	_ = reportCmd.MarkFlagRequired("texture")
	_ = reportCmd.MarkFlagRequired("ph")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc := calculator.NewService(planning.NewPlanner(engine), calculator.StaticProducts(engine.Catalog()), nil, logger)
	rep, err := svc.Report(ctx, reportReq)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), rep)
	}
	return printReport(cmd.OutOrStdout(), rep)
}

func printReport(out io.Writer, rep *calculator.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Soil\t%s, %s, %.2f ha\n", rep.SoilTexture, rep.LandUse, rep.AreaHa)
	for _, c := range rep.Classifications {
		fmt.Fprintf(w, "%s\t%g\t%s\n", c.Nutrient, c.Value, c.Label)
	}
	if len(rep.Deficient) > 0 {
		names := make([]string, len(rep.Deficient))
		for i, n := range rep.Deficient {
			names[i] = string(n)
		}
		fmt.Fprintf(w, "Deficient\t%s\n", strings.Join(names, ", "))
	}
	fmt.Fprintln(w)

	need := rep.Need
	fmt.Fprintf(w, "Target pH\t%.2f\n", need.TargetPH)
	fmt.Fprintf(w, "Severity\t%s\n", need.Severity)
	fmt.Fprintf(w, "CaO need\t%.2f t/ha\n", need.TotalCaOPerHa)
	fmt.Fprintf(w, "Max single dose\t%.2f t CaO/ha\n", need.MaxSingleDosePerHa)
	primary := rep.Selection.Primary
	fmt.Fprintf(w, "Product\t%s, %.2f t/ha (%s)\n", primary.Product.Name, primary.DosePerHa, primary.Reason)
	alt := rep.Selection.Alternative
	fmt.Fprintf(w, "Alternative\t%s, %.2f t/ha\n", alt.Product.Name, alt.DosePerHa)
	fmt.Fprintln(w)

	if len(rep.Schedule) == 0 {
		fmt.Fprintln(w, "No liming needed.")
	} else {
		fmt.Fprintln(w, "Year\tSeason\tProduct\tDose t/ha\tTotal t\tpH before\tpH after\tNote")
		for _, a := range rep.Schedule {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
				a.Year, a.Season, a.Product, a.DosePerHa, a.TotalDose, a.PHBefore, a.PHAfter, a.Note)
		}
		fmt.Fprintf(w, "\nFinal pH\t%.2f\n", rep.FinalPH)
		fmt.Fprintf(w, "Total product\t%.2f t\n", rep.TotalProduct)
		fmt.Fprintf(w, "Total cost\t%.2f\n", rep.TotalCost)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "warning\t%s: %s\n", warn.Severity, warn.Message)
	}
	return w.Flush()
}
