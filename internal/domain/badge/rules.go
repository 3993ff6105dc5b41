package badge

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// Условия бейджей сводятся к небольшому набору агрегатов журнала.
// ══════════════════════════════════════════════════════════════════════════════

// Metric - агрегат, который нужен для проверки условия.
type Metric string

const (
	MetricTotalPoints      Metric = "total_points"
	MetricCurrentStreak    Metric = "current_streak"
	MetricAssessments      Metric = "assessments"
	MetricDistinctProjects Metric = "distinct_projects"
	MetricAttendance       Metric = "attendance"
	MetricPerfectScores    Metric = "perfect_scores"
	MetricProjectAwards    Metric = "project_awards"
)

// Aggregates - значения агрегатов для одного студента.
// Отсутствующий ключ означает, что агрегат не вычислялся.
type Aggregates map[Metric]int64

// MetricFor возвращает агрегат для условия или ошибку для некорректного условия.
func MetricFor(c Criteria) (Metric, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	switch c.Type {
	case CriteriaPoints:
		return MetricTotalPoints, nil
	case CriteriaStreak:
		return MetricCurrentStreak, nil
	case CriteriaAssessments:
		return MetricAssessments, nil
	case CriteriaProjects:
		return MetricDistinctProjects, nil
	case CriteriaAttendance:
		return MetricAttendance, nil
	}
	kind, _ := c.ResolveKind()
	if kind == CustomPerfectScore {
		return MetricPerfectScores, nil
	}
	return MetricProjectAwards, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// Warning - бейдж пропущен из-за некорректного условия.
type Warning struct {
	BadgeID string
	Err     error
}

// Evaluation - результат проверки набора бейджей.
type Evaluation struct {
	// Unlocked - бейджи, условия которых выполнены, в порядке ID.
	Unlocked []Definition
	Warnings []Warning
}

// Candidates возвращает активные бейджи, которых у студента ещё нет.
func Candidates(defs []Definition, earned map[string]struct{}) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if !d.IsActive {
			continue
		}
		if _, ok := earned[d.ID]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// RequiredMetrics возвращает агрегаты, нужные для проверки candidates.
// Некорректные условия пропускаются: для них ничего загружать не нужно.
func RequiredMetrics(candidates []Definition) []Metric {
	seen := make(map[Metric]struct{})
	var out []Metric
	for _, d := range candidates {
		m, err := MetricFor(d.Criteria)
		if err != nil {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Evaluate - чистая функция: по определениям, уже полученным бейджам
// и агрегатам возвращает бейджи, которые нужно выдать сейчас.
// Порядок проверки не важен: условие одного бейджа не зависит от другого.
func Evaluate(defs []Definition, earned map[string]struct{}, agg Aggregates) Evaluation {
	var result Evaluation
	for _, d := range Candidates(defs, earned) {
		m, err := MetricFor(d.Criteria)
		if err != nil {
			result.Warnings = append(result.Warnings, Warning{BadgeID: d.ID, Err: err})
			continue
		}
		if float64(agg[m]) >= *d.Criteria.Threshold {
			result.Unlocked = append(result.Unlocked, d)
		}
	}
	sort.Slice(result.Unlocked, func(i, j int) bool {
		return result.Unlocked[i].ID < result.Unlocked[j].ID
	})
	return result
}

// ──────────────────────────────────────────────────────────────────────────────
// PROGRESS
// ──────────────────────────────────────────────────────────────────────────────

// Progress - прогресс студента к ещё не полученному бейджу.
type Progress struct {
	Current   int64
	Threshold float64
	Percent   int
}

// ProgressFor вычисляет прогресс. ok=false для некорректного условия.
func ProgressFor(d Definition, agg Aggregates) (Progress, bool) {
	m, err := MetricFor(d.Criteria)
	if err != nil {
		return Progress{}, false
	}
	p := Progress{Current: agg[m], Threshold: *d.Criteria.Threshold}
	switch {
	case p.Threshold <= 0:
		p.Percent = 100
	default:
		p.Percent = int(float64(p.Current) * 100 / p.Threshold)
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Percent < 0 {
		p.Percent = 0
	}
	return p, true
}
