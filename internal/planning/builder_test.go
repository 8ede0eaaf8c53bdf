package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolime/liming-portal-backend/internal/agronomy"
)

func TestBuildPlan_SingleApplication(t *testing.T) {
	p := newTestPlanner(t)
	e := p.Engine()

	need, err := e.ComputeLimingNeed(5.0, agronomy.TextureMedium, agronomy.LandUseArable)
	require.NoError(t, err)
	require.Equal(t, 1, need.ApplicationsNeeded)

	apps, err := p.BuildPlan(BuildRequest{
		Need:        need,
		Product:     limestone,
		StartYear:   2025,
		StartSeason: SeasonAutumn,
		Params:      mediumParams(),
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)

	a := apps[0]
	assert.Equal(t, 2025, a.Year)
	assert.Equal(t, SeasonAutumn, a.Season)
	assert.Equal(t, 5.46, a.DosePerHa)
	assert.LessOrEqual(t, a.EffectiveCaOPerHa, need.TotalCaOPerHa)
	assert.Equal(t, 5.0, a.PHBefore)
	assert.Greater(t, a.PHAfter, 5.0)
	assert.Empty(t, a.Warnings)
	assert.NotEmpty(t, a.Note)
}

func TestBuildPlan_SplitsAcrossSlots(t *testing.T) {
	p := newTestPlanner(t)
	e := p.Engine()

	need, err := e.ComputeLimingNeed(4.2, agronomy.TextureHeavy, agronomy.LandUseArable)
	require.NoError(t, err)
	require.Equal(t, agronomy.TierCriticalUrgent, need.Severity)

	params := RecalcParams{Texture: agronomy.TextureHeavy, TargetPH: need.TargetPH, StartPH: 4.2, AreaHa: 5}
	apps, err := p.BuildPlan(BuildRequest{
		Need:         need,
		Product:      dolomite,
		StartYear:    2025,
		StartSeason:  SeasonSpring,
		SlotsPerYear: 2,
		Params:       params,
	})
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, SeasonSpring, apps[0].Season)
	assert.Equal(t, SeasonAutumn, apps[1].Season)
	assert.Equal(t, apps[0].PHAfter, apps[1].PHBefore)

	for _, a := range apps {
		assert.Equal(t, 4.90, a.DosePerHa)
		assert.LessOrEqual(t, a.EffectiveCaOPerHa, need.MaxSingleDosePerHa)
		assert.False(t, agronomy.HasCritical(a.Warnings))
	}
	require.NoError(t, CheckOrder(apps))
}

func TestBuildPlan_NoNeed(t *testing.T) {
	p := newTestPlanner(t)
	need, err := p.Engine().ComputeLimingNeed(7.0, agronomy.TextureMedium, agronomy.LandUseArable)
	require.NoError(t, err)

	apps, err := p.BuildPlan(BuildRequest{Need: need, Product: limestone, StartYear: 2025, Params: mediumParams()})
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestBuildPlan_RejectsBadRequests(t *testing.T) {
	p := newTestPlanner(t)
	need, err := p.Engine().ComputeLimingNeed(5.0, agronomy.TextureMedium, agronomy.LandUseArable)
	require.NoError(t, err)

	tests := []struct {
		name  string
		req   BuildRequest
		field string
	}{
		{"year", BuildRequest{Need: need, Product: limestone, StartYear: 25}, "start_year"},
		{"season", BuildRequest{Need: need, Product: limestone, StartYear: 2025, StartSeason: "winter"}, "start_season"},
		{"slots", BuildRequest{Need: need, Product: limestone, StartYear: 2025, SlotsPerYear: 3}, "slots_per_year"},
		{"product", BuildRequest{Need: need, Product: agronomy.LimingProduct{Name: "x", CaOContent: 120}, StartYear: 2025}, "product.cao_content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Params = mediumParams()
			_, err := p.BuildPlan(tt.req)
			var fe *agronomy.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestSeasonSlots(t *testing.T) {
	tests := []struct {
		name    string
		start   Season
		perYear int
		n       int
		want    []slot
	}{
		{"one per year keeps season", SeasonSummer, 1, 3, []slot{{2025, SeasonSummer}, {2026, SeasonSummer}, {2027, SeasonSummer}}},
		{"two per year from spring", SeasonSpring, 2, 3, []slot{{2025, SeasonSpring}, {2025, SeasonAutumn}, {2026, SeasonSpring}}},
		{"two per year from summer", SeasonSummer, 2, 2, []slot{{2025, SeasonAutumn}, {2026, SeasonSpring}}},
		{"two per year from autumn", SeasonAutumn, 2, 2, []slot{{2025, SeasonAutumn}, {2026, SeasonSpring}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, seasonSlots(2025, tt.start, tt.perYear, tt.n))
		})
	}
}
