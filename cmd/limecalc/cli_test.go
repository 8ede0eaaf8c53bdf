package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// execute runs the root command with args, restoring every flag to its
// default first since the commands keep their state in package variables.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
	methodologyPath = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const farm = `parcels:
  - name: acid
    area_ha: 10
    soil_texture: medium
    ph: 5.0
  - name: neutral
    area_ha: 5
    soil_texture: medium
    land_use: arable
    ph: 7.2
`

func TestReportCmd(t *testing.T) {
	out, err := execute(t, "", "report", "--texture", "medium", "--ph", "5.0", "--mg", "90", "--area", "10", "--start-year", "2025")
	require.NoError(t, err)
	assert.Contains(t, out, "2.73 t/ha")
	assert.Contains(t, out, "Dolomitic limestone")
	assert.Contains(t, out, "2025")
	assert.Contains(t, out, "Final pH")
}

func TestReportCmd_JSON(t *testing.T) {
	out, err := execute(t, "", "report", "--texture", "medium", "--ph", "5.0", "--mg", "90", "--json")
	require.NoError(t, err)

	var rep struct {
		Need struct {
			TotalCaOPerHa float64 `json:"total_cao_per_ha"`
		} `json:"liming_need"`
		Selection struct {
			Primary struct {
				DosePerHa float64 `json:"dose_per_ha"`
			} `json:"primary"`
		} `json:"product_selection"`
		AreaHa float64 `json:"area_ha"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.InDelta(t, 2.73, rep.Need.TotalCaOPerHa, 0.005)
	assert.InDelta(t, 4.96, rep.Selection.Primary.DosePerHa, 0.01)
	assert.Equal(t, 1.0, rep.AreaHa)
}

func TestReportCmd_Rejects(t *testing.T) {
	_, err := execute(t, "", "report", "--texture", "peat", "--ph", "5.0")
	assert.ErrorContains(t, err, "soil_texture")

	_, err = execute(t, "", "report", "--texture", "medium")
	assert.ErrorContains(t, err, `"ph" not set`)
}

func TestSimulateCmd(t *testing.T) {
	out, err := execute(t, "", "simulate", "--texture", "medium", "--ph", "5.0", "--dose", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Ground limestone")
	assert.Contains(t, out, "5.00 -> 5.48")

	out, err = execute(t, "", "simulate", "--texture", "medium", "--ph", "5.0", "--dose", "2", "--cao", "40", "--mgo", "10", "--json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.InDelta(t, 0.539, res["env"], 0.001)

	_, err = execute(t, "", "simulate", "--texture", "medium", "--ph", "5.0", "--dose", "2", "--product", "chalk")
	assert.ErrorContains(t, err, "unknown product")
}

func TestLossCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(farm), 0o600))

	out, err := execute(t, "", "loss", path, "--json", "--sort", "total_loss", "--desc")
	require.NoError(t, err)
	var est struct {
		Parcels []struct {
			Name          string   `json:"name"`
			TotalLoss     float64  `json:"total_loss"`
			LimingCost    float64  `json:"liming_cost"`
			PaybackMonths *float64 `json:"payback_months"`
		} `json:"parcels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &est), out)
	require.Len(t, est.Parcels, 2)
	assert.Equal(t, "acid", est.Parcels[0].Name)
	assert.InDelta(t, 105000, est.Parcels[0].TotalLoss, 0.01)
	assert.InDelta(t, 51870, est.Parcels[0].LimingCost, 0.01)
	assert.Nil(t, est.Parcels[1].PaybackMonths)

	out, err = execute(t, farm, "loss", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Ground limestone, 950.00 per t")
	assert.Contains(t, out, "acid")
}

func TestLossCmd_Export(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(farm), 0o600))

	target := filepath.Join(dir, "losses.csv")
	_, err := execute(t, "", "loss", path, "--export", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "acid,10.00,medium,5.00,65.0,10500.00,105000.00,2.73,54.60,51870.00,5.9\n")

	pdf := filepath.Join(dir, "losses.out")
	_, err = execute(t, "", "loss", path, "-o", pdf, "--format", "pdf")
	require.NoError(t, err)
	data, err = os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = execute(t, "", "loss", path, "-o", filepath.Join(dir, "losses.doc"))
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestLossCmd_RejectsFile(t *testing.T) {
	_, err := execute(t, "parcels: []\n", "loss", "-")
	assert.ErrorContains(t, err, "no parcels")

	_, err = execute(t, "parcels:\n  - name: x\n    colour: red\n", "loss", "-")
	assert.ErrorContains(t, err, "failed to parse parcels file")

	_, err = execute(t, "parcels:\n  - name: x\n    soil_texture: peat\n    ph: 5\n", "loss", "-")
	assert.ErrorContains(t, err, "parcels[0]")
}

func TestCatalogProduct(t *testing.T) {
	c := agronomy.DefaultCatalog()
	for _, name := range []string{"", "limestone", "Ground limestone"} {
		p, err := catalogProduct(c, name)
		require.NoError(t, err)
		assert.Equal(t, c.Limestone, p)
	}
	p, err := catalogProduct(c, "DOLOMITE")
	require.NoError(t, err)
	assert.Equal(t, c.Dolomite, p)
}

func TestOptional(t *testing.T) {
	cmd := &cobra.Command{}
	var v float64
	cmd.Flags().Float64Var(&v, "revenue", 10, "")
	assert.Nil(t, optional(cmd, "revenue", v))

	require.NoError(t, cmd.Flags().Set("revenue", "0"))
	got := optional(cmd, "revenue", 0)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}
