package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

func def(id string, c Criteria) Definition {
	return Definition{ID: id, Name: id, IsActive: true, Criteria: c}
}

func TestMetricFor(t *testing.T) {
	tests := []struct {
		criteria Criteria
		want     Metric
	}{
		{Criteria{Type: CriteriaPoints, Threshold: Threshold(100)}, MetricTotalPoints},
		{Criteria{Type: CriteriaStreak, Threshold: Threshold(7)}, MetricCurrentStreak},
		{Criteria{Type: CriteriaAssessments, Threshold: Threshold(5)}, MetricAssessments},
		{Criteria{Type: CriteriaProjects, Threshold: Threshold(2)}, MetricDistinctProjects},
		{Criteria{Type: CriteriaAttendance, Threshold: Threshold(10)}, MetricAttendance},
		{Criteria{Type: CriteriaCustom, Kind: CustomPerfectScore, Threshold: Threshold(1)}, MetricPerfectScores},
		{Criteria{Type: CriteriaCustom, Kind: CustomProjectAward, Threshold: Threshold(1)}, MetricProjectAwards},
	}
	for _, tt := range tests {
		got, err := MetricFor(tt.criteria)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.criteria.Type)
	}
}

func TestResolveKind_LegacyDescriptions(t *testing.T) {
	kind, ok := Criteria{Type: CriteriaCustom, Description: "Score 100% on an assessment"}.ResolveKind()
	assert.True(t, ok)
	assert.Equal(t, CustomPerfectScore, kind)

	kind, ok = Criteria{Type: CriteriaCustom, Description: "Win a project Award"}.ResolveKind()
	assert.True(t, ok)
	assert.Equal(t, CustomProjectAward, kind)

	_, ok = Criteria{Type: CriteriaCustom, Description: "be nice"}.ResolveKind()
	assert.False(t, ok)

	// an explicit kind wins over the description
	kind, ok = Criteria{Type: CriteriaCustom, Kind: CustomProjectAward, Description: "100%"}.ResolveKind()
	assert.True(t, ok)
	assert.Equal(t, CustomProjectAward, kind)
}

func TestCriteriaValidate_Malformed(t *testing.T) {
	for name, c := range map[string]Criteria{
		"missing type":      {Threshold: Threshold(1)},
		"missing threshold": {Type: CriteriaPoints},
		"unresolved custom": {Type: CriteriaCustom, Threshold: Threshold(1), Description: "?"},
	} {
		err := c.Validate()
		require.Error(t, err, name)
		assert.ErrorIs(t, err, shared.ErrMalformedCriteria, name)
	}

	err := Criteria{Type: "karma", Threshold: Threshold(1)}.Validate()
	assert.ErrorIs(t, err, shared.ErrUnknownCriteriaType)
}

func TestEvaluate(t *testing.T) {
	defs := []Definition{
		def("points-100", Criteria{Type: CriteriaPoints, Threshold: Threshold(100)}),
		def("points-500", Criteria{Type: CriteriaPoints, Threshold: Threshold(500)}),
		def("projects-2", Criteria{Type: CriteriaProjects, Threshold: Threshold(2)}),
		def("broken", Criteria{Type: CriteriaStreak}),
		{ID: "inactive", Name: "inactive", Criteria: Criteria{Type: CriteriaPoints, Threshold: Threshold(1)}},
	}
	agg := Aggregates{MetricTotalPoints: 120, MetricDistinctProjects: 2}

	eval := Evaluate(defs, map[string]struct{}{}, agg)
	require.Len(t, eval.Unlocked, 2)
	assert.Equal(t, "points-100", eval.Unlocked[0].ID)
	assert.Equal(t, "projects-2", eval.Unlocked[1].ID)
	require.Len(t, eval.Warnings, 1)
	assert.Equal(t, "broken", eval.Warnings[0].BadgeID)

	// already earned badges are never returned again
	eval = Evaluate(defs, map[string]struct{}{"points-100": {}, "projects-2": {}}, agg)
	assert.Empty(t, eval.Unlocked)
}

func TestRequiredMetrics(t *testing.T) {
	got := RequiredMetrics([]Definition{
		def("a", Criteria{Type: CriteriaPoints, Threshold: Threshold(1)}),
		def("b", Criteria{Type: CriteriaPoints, Threshold: Threshold(2)}),
		def("c", Criteria{Type: CriteriaAttendance, Threshold: Threshold(2)}),
		def("d", Criteria{Type: CriteriaAttendance}),
	})
	assert.Equal(t, []Metric{MetricAttendance, MetricTotalPoints}, got)
}

func TestProgressFor(t *testing.T) {
	d := def("p", Criteria{Type: CriteriaAttendance, Threshold: Threshold(8)})

	p, ok := ProgressFor(d, Aggregates{MetricAttendance: 2})
	require.True(t, ok)
	assert.Equal(t, 25, p.Percent)

	p, _ = ProgressFor(d, Aggregates{MetricAttendance: 20})
	assert.Equal(t, 100, p.Percent)

	_, ok = ProgressFor(def("x", Criteria{Type: CriteriaAttendance}), Aggregates{})
	assert.False(t, ok)
}
