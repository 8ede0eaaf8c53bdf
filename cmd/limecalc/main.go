// Command limecalc runs the liming calculator from the command line: soil
// reading reports, single-dose simulations and acidity loss estimates.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/config"
)

var (
	// Global flags
	verbose         bool
	jsonOutput      bool
	methodologyPath string
	timeout         time.Duration

	logger *zap.Logger
	engine *agronomy.Engine
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "limecalc",
	Short: "Liming and soil nutrient calculator",
	Long: `limecalc sizes liming for a parcel from a soil analysis.

It classifies the reading, derives the CaO need and the safe single dose,
picks limestone or dolomite and projects the applications. The tables come
from the built-in methodology unless --methodology points at a YAML override.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		engine, err = (&config.AgronomyConfig{MethodologyPath: methodologyPath}).Engine()
		if err != nil {
			return fmt.Errorf("failed to load methodology: %w", err)
		}
		logger.Debug("Methodology loaded", zap.String("name", engine.Methodology().Name))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVarP(&methodologyPath, "methodology", "m", os.Getenv("METHODOLOGY_PATH"), "YAML methodology override (or set METHODOLOGY_PATH)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(lossCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optional turns an unset flag into a nil pointer
func optional(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
