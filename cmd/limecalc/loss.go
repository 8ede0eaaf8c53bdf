package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/config"
	"agrolime/liming-portal-backend/internal/economics"
	"agrolime/liming-portal-backend/internal/reports"
)

var lossFlags struct {
	fertilizerCost float64
	revenue        float64
	limingCost     float64
	product        string
	sortBy         string
	desc           bool
	exportPath     string
	format         string
}

// parcelFile is the YAML (or JSON) list of parcels read by the loss command
type parcelFile struct {
	Parcels []struct {
		Name        string  `yaml:"name"`
		AreaHa      float64 `yaml:"area_ha"`
		SoilTexture string  `yaml:"soil_texture"`
		LandUse     string  `yaml:"land_use"`
		PH          float64 `yaml:"ph"`
	} `yaml:"parcels"`
}

var lossCmd = &cobra.Command{
	Use:   "loss <parcels.yaml>",
	Short: "Estimate the yearly losses caused by soil acidity",
	Long: `Estimates for every parcel in the file the fertilizer and yield losses
caused by its pH, the cost of liming it to target and the months until the
liming pays back. Use - to read the parcels from stdin.

The file lists parcels under a "parcels" key with name, area_ha,
soil_texture, land_use and ph.`,
	Example: `  limecalc loss farm.yaml --revenue 32000 --sort total_loss --desc
  limecalc loss farm.yaml --export losses.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runLoss,
}

func init() {
	defaults := config.Default().Economics
	f := lossCmd.Flags()
	f.Float64Var(&lossFlags.fertilizerCost, "fertilizer-cost", defaults.FertilizerCostPerHa, "Fertilizer cost per hectare")
	f.Float64Var(&lossFlags.revenue, "revenue", defaults.RevenuePerHa, "Revenue per hectare")
	f.Float64Var(&lossFlags.limingCost, "liming-cost", 0, "Liming cost per ton (default: product price)")
	f.StringVar(&lossFlags.product, "product", "", "Catalog product: limestone or dolomite (default: limestone)")
	f.StringVar(&lossFlags.sortBy, "sort", "", "Sort column, e.g. name, total_loss, payback_months")
	f.BoolVar(&lossFlags.desc, "desc", false, "Sort descending")
	f.StringVarP(&lossFlags.exportPath, "export", "o", "", "Write the estimate to a csv, xlsx or pdf file")
	f.StringVar(&lossFlags.format, "format", "", "Export format (default: from the file extension)")
}

func runLoss(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	inputs, err := readParcels(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	req := economics.EstimateRequest{
		Parcels:             inputs,
		FertilizerCostPerHa: optional(cmd, "fertilizer-cost", lossFlags.fertilizerCost),
		RevenuePerHa:        optional(cmd, "revenue", lossFlags.revenue),
		LimingCostPerTon:    optional(cmd, "liming-cost", lossFlags.limingCost),
		SortBy:              economics.SortColumn(lossFlags.sortBy),
		Descending:          lossFlags.desc,
	}
	if lossFlags.product != "" {
		p, err := catalogProduct(engine.Catalog(), lossFlags.product)
		if err != nil {
			return err
		}
		req.Product = &p
	}

	estimates := economics.NewService(economics.NewDefaultEstimator(engine), nil, nil, config.Default().Economics.Params(), nil, logger)
	if lossFlags.exportPath != "" {
		return exportLoss(ctx, reports.NewService(nil, estimates, nil, logger), req)
	}

	est, err := estimates.Estimate(ctx, req)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), est)
	}
	return printLoss(cmd.OutOrStdout(), est)
}

func readParcels(stdin io.Reader, path string) ([]economics.ParcelInput, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open parcels file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var file parcelFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse parcels file: %w", err)
	}
	if len(file.Parcels) == 0 {
		return nil, errors.New("parcels file lists no parcels")
	}

	out := make([]economics.ParcelInput, 0, len(file.Parcels))
	for i, p := range file.Parcels {
		texture, err := agronomy.ParseSoilTexture(p.SoilTexture)
		if err != nil {
			return nil, fmt.Errorf("parcels[%d]: %w", i, err)
		}
		landUse, err := agronomy.ParseLandUse(p.LandUse)
		if err != nil {
			return nil, fmt.Errorf("parcels[%d]: %w", i, err)
		}
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Parcel %d", i+1)
		}
		out = append(out, economics.ParcelInput{
			Name:        name,
			AreaHa:      p.AreaHa,
			SoilTexture: texture,
			LandUse:     landUse,
			PH:          p.PH,
		})
	}
	return out, nil
}

func exportLoss(ctx context.Context, svc *reports.Service, req economics.EstimateRequest) error {
	name := lossFlags.format
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(lossFlags.exportPath), ".")
	}
	format, err := reports.ParseExportFormat(name)
	if err != nil {
		return err
	}
	table, err := svc.LossTable(ctx, req)
	if err != nil {
		return err
	}

	f, err := os.Create(lossFlags.exportPath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := svc.Export(ctx, format, f, table); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("Loss estimate exported", zap.String("path", lossFlags.exportPath), zap.String("format", string(format)))
	return nil
}

func printLoss(out io.Writer, est *economics.Estimate) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Product\t%s, %.2f per t\n\n", est.Product.Name, est.Params.LimingCostPerTon)
	fmt.Fprintln(w, "Parcel\tArea ha\tpH\tEfficiency %\tLoss/ha\tTotal loss\tProduct t\tLiming cost\tPayback months")
	for _, p := range est.Parcels {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.1f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			p.Name, p.AreaHa, p.PH, p.Efficiency*100, p.LossPerHa, p.TotalLoss, p.ProductTons, p.LimingCost, months(p.PaybackMonths))
	}
	agg := est.Aggregate
	fmt.Fprintf(w, "Total\t%.2f\t\t%.1f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
		agg.AreaHa, agg.Efficiency*100, agg.LossPerHa, agg.TotalLoss, agg.ProductTons, agg.LimingCost, months(agg.PaybackMonths))
	return w.Flush()
}

func months(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
