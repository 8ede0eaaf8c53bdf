package planning

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolime/liming-portal-backend/internal/agronomy"
)

var (
	limestone = agronomy.DefaultCatalog().Limestone
	dolomite  = agronomy.DefaultCatalog().Dolomite
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	return NewPlanner(agronomy.MustDefaultEngine())
}

func newApp(seq, year int, season Season, dose float64, product agronomy.LimingProduct) LimingApplication {
	a := LimingApplication{
		ID:        uuid.New(),
		Sequence:  seq,
		Year:      year,
		Season:    season,
		DosePerHa: dose,
		Status:    StatusPlanned,
	}
	a.SetProduct(product)
	return a
}

func mediumParams() RecalcParams {
	return RecalcParams{
		Texture:    agronomy.TextureMedium,
		TargetPH:   6.5,
		StartPH:    5.0,
		AreaHa:     10,
		MgCategory: agronomy.CategoryLow,
	}
}

func TestRecalculatePlan_SameYearChainIsExact(t *testing.T) {
	p := newTestPlanner(t)
	apps := []LimingApplication{
		newApp(1, 2025, SeasonSpring, 3, dolomite),
		newApp(2, 2025, SeasonSummer, 2, dolomite),
	}

	out, err := p.RecalculatePlan(apps, mediumParams(), 0)
	require.NoError(t, err)

	assert.Equal(t, 5.0, out[0].PHBefore)
	assert.Equal(t, out[0].PHAfter, out[1].PHBefore)
	assert.Greater(t, out[1].PHAfter, out[1].PHBefore)

	e := p.Engine()
	assert.Equal(t, e.PHAfter(3*0.5502, agronomy.TextureMedium, 5.0), out[0].PHAfter)
	assert.InDelta(t, 0.9, out[0].CaOPerHa, 1e-12)
	assert.InDelta(t, 1.6506, out[0].EffectiveCaOPerHa, 1e-12)
	assert.InDelta(t, 30.0, out[0].TotalDose, 1e-12)
}

func TestRecalculatePlan_CrossYearAcidification(t *testing.T) {
	p := newTestPlanner(t)
	apps := []LimingApplication{
		newApp(1, 2025, SeasonAutumn, 4, limestone),
		newApp(2, 2028, SeasonSpring, 2, limestone),
	}

	out, err := p.RecalculatePlan(apps, mediumParams(), 0)
	require.NoError(t, err)
	assert.InDelta(t, out[0].PHAfter-3*0.07, out[1].PHBefore, 1e-12)
}

func TestRecalculatePlan_AcidificationFloor(t *testing.T) {
	p := newTestPlanner(t)
	params := RecalcParams{Texture: agronomy.TextureLight, TargetPH: 6.0, StartPH: 3.6, AreaHa: 1}
	apps := []LimingApplication{
		newApp(1, 2020, SeasonSpring, 0, limestone),
		newApp(2, 2030, SeasonSpring, 0, limestone),
	}

	out, err := p.RecalculatePlan(apps, params, 0)
	require.NoError(t, err)
	assert.Equal(t, 3.6, out[0].PHAfter)
	assert.Equal(t, 3.5, out[1].PHBefore)
}

func TestRecalculatePlan_Idempotent(t *testing.T) {
	p := newTestPlanner(t)
	apps := []LimingApplication{
		newApp(1, 2025, SeasonSpring, 3, dolomite),
		newApp(2, 2025, SeasonAutumn, 2.5, dolomite),
		newApp(3, 2027, SeasonSpring, 2, limestone),
	}
	input := cloneApplications(apps)

	first, err := p.RecalculatePlan(apps, mediumParams(), 0)
	require.NoError(t, err)
	second, err := p.RecalculatePlan(first, mediumParams(), 0)
	require.NoError(t, err)
	fromMiddle, err := p.RecalculatePlan(first, mediumParams(), 1)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	assert.Empty(t, cmp.Diff(first, fromMiddle))
	assert.Empty(t, cmp.Diff(input, apps), "input must not be modified")
	assert.Empty(t, ChangedTail(first, second))
}

func TestRecalculatePlan_EditCascadesForwardOnly(t *testing.T) {
	p := newTestPlanner(t)
	apps := []LimingApplication{
		newApp(1, 2025, SeasonSpring, 3, dolomite),
		newApp(2, 2025, SeasonAutumn, 2, dolomite),
		newApp(3, 2026, SeasonSpring, 2, dolomite),
	}
	base, err := p.RecalculatePlan(apps, mediumParams(), 0)
	require.NoError(t, err)

	edited := cloneApplications(base)
	edited[1].DosePerHa = 4
	out, err := p.RecalculatePlan(edited, mediumParams(), 1)
	require.NoError(t, err)

	assert.Equal(t, base[0], out[0])
	assert.Greater(t, out[1].PHAfter, base[1].PHAfter)
	assert.Greater(t, out[2].PHBefore, base[2].PHBefore)

	changed := ChangedTail(base, out)
	require.Len(t, changed, 2)
	assert.Equal(t, base[1].ID, changed[0].ID)
	assert.Equal(t, base[2].ID, changed[1].ID)
}

func TestRecalculatePlan_SkipsAppliedAndCancelled(t *testing.T) {
	p := newTestPlanner(t)
	apps := []LimingApplication{
		newApp(1, 2025, SeasonSpring, 3, limestone),
		newApp(2, 2025, SeasonAutumn, 3, limestone),
		newApp(3, 2025, SeasonAutumn, 2, limestone),
	}
	apps[1].Status = StatusCancelled
	apps[1].PHBefore, apps[1].PHAfter = 1, 2

	out, err := p.RecalculatePlan(apps, mediumParams(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, out[1].PHBefore, "cancelled keeps recorded values")
	assert.Equal(t, 2.0, out[1].PHAfter)
	assert.Equal(t, out[0].PHAfter, out[2].PHBefore)
}

func TestRecalculatePlan_InconsistentSequence(t *testing.T) {
	p := newTestPlanner(t)

	t.Run("out of order", func(t *testing.T) {
		apps := []LimingApplication{
			newApp(1, 2026, SeasonSpring, 2, limestone),
			newApp(2, 2025, SeasonSpring, 2, limestone),
		}
		_, err := p.RecalculatePlan(apps, mediumParams(), 0)
		assert.ErrorIs(t, err, agronomy.ErrInconsistentSequence)
	})

	t.Run("duplicate slot and sequence", func(t *testing.T) {
		apps := []LimingApplication{
			newApp(1, 2025, SeasonSpring, 2, limestone),
			newApp(1, 2025, SeasonSpring, 2, limestone),
		}
		_, err := p.RecalculatePlan(apps, mediumParams(), 0)
		assert.ErrorIs(t, err, agronomy.ErrInconsistentSequence)
	})

	t.Run("edit index outside plan", func(t *testing.T) {
		apps := []LimingApplication{newApp(1, 2025, SeasonSpring, 2, limestone)}
		_, err := p.RecalculatePlan(apps, mediumParams(), 2)
		assert.ErrorIs(t, err, agronomy.ErrInconsistentSequence)
		_, err = p.RecalculatePlan(apps, mediumParams(), -1)
		assert.ErrorIs(t, err, agronomy.ErrInconsistentSequence)
	})

	t.Run("implausible start pH", func(t *testing.T) {
		params := mediumParams()
		params.StartPH = 12
		_, err := p.RecalculatePlan(nil, params, 0)
		assert.ErrorIs(t, err, agronomy.ErrInputOutOfRange)
	})
}

func TestRecalculatePlan_NeverExceedsCeiling(t *testing.T) {
	p := newTestPlanner(t)
	params := mediumParams()
	params.StartPH = 7.8
	apps := []LimingApplication{
		newApp(1, 2025, SeasonSpring, 50, limestone),
		newApp(2, 2025, SeasonAutumn, 50, limestone),
	}

	out, err := p.RecalculatePlan(apps, params, 0)
	require.NoError(t, err)
	for _, a := range out {
		assert.LessOrEqual(t, a.PHAfter, 8.0)
		assert.True(t, agronomy.HasCritical(a.Warnings))
	}
}

func TestSortApplications(t *testing.T) {
	apps := []LimingApplication{
		newApp(7, 2026, SeasonSpring, 1, limestone),
		newApp(3, 2025, SeasonAutumn, 1, limestone),
		newApp(9, 2025, SeasonSpring, 1, limestone),
	}
	sorted := SortApplications(apps)

	require.NoError(t, CheckOrder(sorted))
	assert.Equal(t, []int{1, 2, 3}, []int{sorted[0].Sequence, sorted[1].Sequence, sorted[2].Sequence})
	assert.Equal(t, apps[2].ID, sorted[0].ID)
	assert.Equal(t, apps[1].ID, sorted[1].ID)
	assert.Equal(t, 7, apps[0].Sequence, "input must not be renumbered")
}

func TestVerify(t *testing.T) {
	p := newTestPlanner(t)
	apps := []LimingApplication{
		newApp(1, 2025, SeasonSpring, 3, dolomite),
		newApp(2, 2026, SeasonSpring, 2, dolomite),
	}
	out, err := p.RecalculatePlan(apps, mediumParams(), 0)
	require.NoError(t, err)

	issues, err := p.Verify(out, mediumParams())
	require.NoError(t, err)
	assert.Empty(t, issues)

	out[1].PHBefore += 0.3
	issues, err = p.Verify(out, mediumParams())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "ph_before", issues[0].Field)
	assert.Equal(t, 2, issues[0].Sequence)
}
