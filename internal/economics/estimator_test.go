package economics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolime/liming-portal-backend/internal/agronomy"
)

func newTestEstimator() *Estimator {
	return NewDefaultEstimator(agronomy.MustDefaultEngine())
}

func mediumParcel(name string, pH float64) ParcelInput {
	return ParcelInput{Name: name, AreaHa: 10, SoilTexture: agronomy.TextureMedium, LandUse: agronomy.LandUseArable, PH: pH}
}

func TestCurveAt(t *testing.T) {
	eff := DefaultEfficiencyCurve()
	tests := []struct {
		pH   float64
		want float64
	}{
		{3.0, 0.40},
		{5.0, 0.65},
		{5.25, 0.71},
		{6.0, 0.89},
		{6.8, 0.988},
		{8.0, 1.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, eff.At(tt.pH), 1e-9, "pH %.2f", tt.pH)
	}

	assert.Equal(t, 0.0, Curve{}.At(5))
	assert.Equal(t, 1.0, Curve{{PH: 4, Value: 1.5}, {PH: 5, Value: 2}}.At(4.5))
}

func TestCurvesAreMonotone(t *testing.T) {
	eff, loss := DefaultEfficiencyCurve(), DefaultYieldLossCurve()
	for pH := 3.5; pH < 8.0; pH += 0.05 {
		assert.LessOrEqual(t, eff.At(pH), eff.At(pH+0.05))
		assert.GreaterOrEqual(t, loss.At(pH), loss.At(pH+0.05))
	}
}

func TestCurveValidate(t *testing.T) {
	assert.NoError(t, DefaultYieldLossCurve().Validate("yield"))
	assert.ErrorIs(t, Curve{{PH: 5, Value: 0.5}}.Validate("c"), agronomy.ErrInputOutOfRange)
	assert.ErrorIs(t, Curve{{PH: 5, Value: 0.5}, {PH: 5, Value: 0.6}}.Validate("c"), agronomy.ErrInputOutOfRange)
	assert.ErrorIs(t, Curve{{PH: 5, Value: 0.5}, {PH: 6, Value: 1.1}}.Validate("c"), agronomy.ErrInputOutOfRange)

	_, err := NewEstimator(agronomy.MustDefaultEngine(), Curve{}, DefaultYieldLossCurve())
	assert.Error(t, err)
}

func TestEstimateLossAcidVersusNearOptimum(t *testing.T) {
	e := newTestEstimator()
	params := Params{FertilizerCostPerHa: 8000, RevenuePerHa: 35000}

	est, err := e.EstimateLoss([]ParcelInput{mediumParcel("acid", 5.0), mediumParcel("limed", 6.8)}, params)
	require.NoError(t, err)
	require.Len(t, est.Parcels, 2)

	acid, limed := est.Parcels[0], est.Parcels[1]
	assert.InDelta(t, 2800, acid.FertilizerLossPerHa, 0.01)
	assert.InDelta(t, 7700, acid.YieldLossPerHa, 0.01)
	assert.InDelta(t, 10500, acid.LossPerHa, 0.01)
	assert.Greater(t, acid.TotalLoss, 0.0)

	assert.InDelta(t, 236, limed.LossPerHa, 0.01)
	assert.Less(t, limed.LossPerHa, 0.03*acid.LossPerHa)
}

func TestEstimateLossLimingCostAndPayback(t *testing.T) {
	e := newTestEstimator()
	est, err := e.EstimateLoss([]ParcelInput{mediumParcel("acid", 5.0)}, Params{FertilizerCostPerHa: 8000, RevenuePerHa: 35000})
	require.NoError(t, err)

	row := est.Parcels[0]
	assert.Equal(t, agronomy.DefaultCatalog().Limestone, est.Product)
	assert.InDelta(t, 2.73, row.CaONeedPerHa, 1e-9)
	// 2.73 t CaO at 50 % CaO over 10 ha
	assert.InDelta(t, 54.6, row.ProductTons, 1e-9)
	assert.InDelta(t, 51870, row.LimingCost, 0.01)
	require.NotNil(t, row.PaybackMonths)
	assert.InDelta(t, 5.93, *row.PaybackMonths, 1e-9)
}

func TestEstimateLossExplicitCostAndProduct(t *testing.T) {
	e := newTestEstimator()
	dolomite := agronomy.DefaultCatalog().Dolomite
	est, err := e.EstimateLoss([]ParcelInput{mediumParcel("acid", 5.0)}, Params{LimingCostPerTon: 1000, Product: &dolomite})
	require.NoError(t, err)

	assert.InDelta(t, 91.0, est.Parcels[0].ProductTons, 1e-9)
	assert.InDelta(t, 91000, est.Parcels[0].LimingCost, 0.01)
	// no prices, no loss
	assert.Nil(t, est.Parcels[0].PaybackMonths)
	assert.Nil(t, est.Aggregate.PaybackMonths)
}

func TestEstimateLossPaybackUndefinedWithoutLoss(t *testing.T) {
	e := newTestEstimator()
	est, err := e.EstimateLoss([]ParcelInput{mediumParcel("neutral", 7.2)}, Params{FertilizerCostPerHa: 8000, RevenuePerHa: 35000})
	require.NoError(t, err)

	row := est.Parcels[0]
	assert.Equal(t, 1.0, row.Efficiency)
	assert.Equal(t, 0.0, row.TotalLoss)
	assert.Equal(t, 0.0, row.LimingCost)
	assert.Nil(t, row.PaybackMonths)
}

func TestEstimateLossAggregateIsAreaWeighted(t *testing.T) {
	e := newTestEstimator()
	small := mediumParcel("small", 5.0)
	small.AreaHa = 2
	large := mediumParcel("large", 6.0)
	large.AreaHa = 8

	est, err := e.EstimateLoss([]ParcelInput{small, large}, Params{FertilizerCostPerHa: 1000})
	require.NoError(t, err)

	agg := est.Aggregate
	assert.Equal(t, 10.0, agg.AreaHa)
	assert.InDelta(t, (0.65*2+0.89*8)/10, agg.Efficiency, 1e-4)
	assert.InDelta(t, 350*2+110*8, agg.TotalLoss, 0.01)
	assert.InDelta(t, agg.TotalLoss/10, agg.LossPerHa, 0.01)
	assert.InDelta(t, est.Parcels[0].LimingCost+est.Parcels[1].LimingCost, agg.LimingCost, 0.01)
}

func TestEstimateLossRejectsBadInput(t *testing.T) {
	e := newTestEstimator()
	tests := []struct {
		name    string
		parcels []ParcelInput
		params  Params
		field   string
	}{
		{"negative area", []ParcelInput{{Name: "x", AreaHa: -1, SoilTexture: agronomy.TextureLight, PH: 5}}, Params{}, "parcels[0].area_ha"},
		{"implausible pH", []ParcelInput{mediumParcel("ok", 5), mediumParcel("bad", 13)}, Params{}, "ph"},
		{"negative cost", nil, Params{FertilizerCostPerHa: -1}, "fertilizer_cost_per_ha"},
		{"product without CaO", nil, Params{Product: &agronomy.LimingProduct{Name: "kieserite", MgOContent: 25}}, "product.cao_content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EstimateLoss(tt.parcels, tt.params)
			var fe *agronomy.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestRecommendedPrice(t *testing.T) {
	price, err := RecommendedPrice(10000, 500, 10)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, price)

	price, err = RecommendedPrice(10000, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, price)

	_, err = RecommendedPrice(100, 10, 0)
	assert.ErrorIs(t, err, agronomy.ErrInputOutOfRange)
}

func TestSortParcels(t *testing.T) {
	months := func(v float64) *float64 { return &v }
	rows := func() []ParcelLoss {
		return []ParcelLoss{
			{ParcelInput: ParcelInput{Name: "B"}, TotalLoss: 5, PaybackMonths: months(3)},
			{ParcelInput: ParcelInput{Name: "C"}, TotalLoss: 9},
			{ParcelInput: ParcelInput{Name: "A"}, TotalLoss: 5, PaybackMonths: months(7)},
		}
	}
	names := func(rs []ParcelLoss) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Name
		}
		return out
	}

	tests := []struct {
		column SortColumn
		desc   bool
		want   []string
	}{
		{SortByName, false, []string{"A", "B", "C"}},
		{"", true, []string{"C", "B", "A"}},
		{SortByTotalLoss, false, []string{"A", "B", "C"}},
		{SortByTotalLoss, true, []string{"C", "A", "B"}},
		{SortByPaybackMonths, false, []string{"B", "A", "C"}},
		{SortByPaybackMonths, true, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.column), func(t *testing.T) {
			rs := rows()
			require.NoError(t, SortParcels(rs, tt.column, tt.desc))
			assert.Equal(t, tt.want, names(rs))
		})
	}

	assert.ErrorIs(t, SortParcels(rows(), "colour", false), agronomy.ErrInputOutOfRange)
}
