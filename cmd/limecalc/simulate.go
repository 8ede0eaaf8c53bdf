package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/calculator"
	"agrolime/liming-portal-backend/internal/planning"
)

var simulateFlags struct {
	texture string
	product string
	cao     float64
	mgo     float64
	dose    float64
	ph      float64
	area    float64
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Predict the pH after one application and grade the dose",
	Long: `Simulates a single application of a catalog product, or of a custom
product given by its CaO and MgO content, and reports the resulting pH with
any dose or overliming warnings.`,
	Example: `  limecalc simulate --texture light --ph 5.2 --dose 3 --product dolomite
  limecalc simulate --texture heavy --ph 4.8 --dose 6 --cao 42 --mgo 8`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.texture, "texture", "", "Soil texture: light, medium or heavy")
	f.StringVar(&simulateFlags.product, "product", "limestone", "Catalog product: limestone or dolomite")
	f.Float64Var(&simulateFlags.cao, "cao", 0, "Custom product CaO content, %")
	f.Float64Var(&simulateFlags.mgo, "mgo", 0, "Custom product MgO content, %")
	f.Float64Var(&simulateFlags.dose, "dose", 0, "Product dose, t/ha")
	f.Float64Var(&simulateFlags.ph, "ph", 0, "Soil pH before the application")
	f.Float64Var(&simulateFlags.area, "area", 1, "Parcel area in hectares")
	_ = simulateCmd.MarkFlagRequired("texture")
	_ = simulateCmd.MarkFlagRequired("ph")
	_ = simulateCmd.MarkFlagRequired("dose")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	texture, err := agronomy.ParseSoilTexture(simulateFlags.texture)
	if err != nil {
		return err
	}
	product, err := catalogProduct(engine.Catalog(), simulateFlags.product)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cao") || cmd.Flags().Changed("mgo") {
		product = agronomy.LimingProduct{
			Name:       fmt.Sprintf("Custom %g/%g", simulateFlags.cao, simulateFlags.mgo),
			CaOContent: simulateFlags.cao,
			MgOContent: simulateFlags.mgo,
		}
	}

	svc := calculator.NewService(planning.NewPlanner(engine), calculator.StaticProducts(engine.Catalog()), nil, logger)
	res, err := svc.Simulate(agronomy.SimulationInput{
		DosePerHa: simulateFlags.dose,
		Product:   product,
		Texture:   texture,
		PHBefore:  simulateFlags.ph,
		AreaHa:    simulateFlags.area,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return printSimulation(cmd.OutOrStdout(), product, res)
}

// catalogProduct resolves limestone or dolomite, by kind or by catalog name
func catalogProduct(c agronomy.ProductCatalog, name string) (agronomy.LimingProduct, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "limestone", "", strings.ToLower(c.Limestone.Name):
		return c.Limestone, nil
	case "dolomite", strings.ToLower(c.Dolomite.Name):
		return c.Dolomite, nil
	}
	return agronomy.LimingProduct{}, &agronomy.FieldError{Field: "product", Reason: fmt.Sprintf("unknown product %q", name)}
}

func printSimulation(out io.Writer, product agronomy.LimingProduct, res agronomy.SimulationResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Product\t%s (ENV %.3f)\n", product.Name, res.ENV)
	fmt.Fprintf(w, "Dose\t%.2f t/ha, %.2f t total\n", res.DosePerHa, res.TotalDose)
	fmt.Fprintf(w, "CaO\t%.2f t/ha\n", res.CaOPerHa)
	fmt.Fprintf(w, "MgO\t%.2f t/ha\n", res.MgOPerHa)
	fmt.Fprintf(w, "Effective CaO\t%.2f t/ha\n", res.EffectiveCaOPerHa)
	fmt.Fprintf(w, "pH\t%.2f -> %.2f\n", res.PHBefore, res.PHAfter)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning\t%s: %s\n", warn.Severity, warn.Message)
	}
	return w.Flush()
}
