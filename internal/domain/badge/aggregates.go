package badge

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE LOADER
// Доменный сервис: вычисляет агрегаты журнала, нужные условиям.
// ══════════════════════════════════════════════════════════════════════════════

// AggregateLoader читает агрегаты из журнала и хранилища серий.
type AggregateLoader struct {
	ledgerRepo ledger.Repository
	streakRepo streak.Repository
}

// NewAggregateLoader создаёт загрузчик.
func NewAggregateLoader(ledgerRepo ledger.Repository, streakRepo streak.Repository) *AggregateLoader {
	return &AggregateLoader{ledgerRepo: ledgerRepo, streakRepo: streakRepo}
}

// Load вычисляет каждый агрегат из metrics один раз.
// Агрегат, который не удалось загрузить, в карте отсутствует, а его ошибка
// входит в возвращаемую (multierr) ошибку: остальные агрегаты остаются валидны.
func (l *AggregateLoader) Load(ctx context.Context, studentID shared.StudentID, metrics []Metric) (Aggregates, error) {
	agg := make(Aggregates, len(metrics))
	var errs error

	for _, m := range metrics {
		value, err := l.load(ctx, studentID, m)
		if err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("load metric %s: %w", m, err))
			continue
		}
		agg[m] = value
	}
	return agg, errs
}

func (l *AggregateLoader) load(ctx context.Context, studentID shared.StudentID, m Metric) (int64, error) {
	switch m {
	case MetricTotalPoints:
		return l.ledgerRepo.SumByStudent(ctx, studentID, nil)
	case MetricCurrentStreak:
		st, err := l.streakRepo.Get(ctx, studentID)
		return int64(st.Current), err
	case MetricAssessments:
		return l.ledgerRepo.CountByType(ctx, studentID, ledger.ActivityAssessmentCompletion)
	case MetricDistinctProjects:
		return l.ledgerRepo.CountDistinctActivities(ctx, studentID, ledger.ActivityProjectMembership)
	case MetricAttendance:
		return l.ledgerRepo.CountByType(ctx, studentID, ledger.ActivitySessionAttendance)
	case MetricPerfectScores:
		return l.ledgerRepo.CountByType(ctx, studentID, ledger.ActivityAssessmentPerfect)
	case MetricProjectAwards:
		return l.ledgerRepo.CountByType(ctx, studentID, ledger.ActivityProjectAward)
	}
	return 0, fmt.Errorf("unsupported metric %q", m)
}
