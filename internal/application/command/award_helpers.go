package command

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD HELPERS
// Domain-specific entry points that take point values from the policy.
// Each one is a thin wrapper over Handle and keeps its idempotency.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRef identifies one occurrence of an activity.
type ActivityRef struct {
	StudentID     string
	InstitutionID string

	// ActivityID is the attempt, session, level, project or course id.
	ActivityID string

	Description string
	OccurredAt  time.Time

	CorrelationID string
}

func (h *AwardHandler) awardRef(ctx context.Context, ref ActivityRef, t ledger.ActivityType) (*AwardResult, error) {
	return h.Handle(ctx, AwardCommand{
		StudentID:     ref.StudentID,
		InstitutionID: ref.InstitutionID,
		ActivityType:  t.String(),
		ActivityID:    ref.ActivityID,
		Points:        h.policy.Current().PointsFor(t),
		Description:   ref.Description,
		OccurredAt:    ref.OccurredAt,
		CorrelationID: ref.CorrelationID,
	})
}

// AssessmentOutcome describes a finished assessment attempt.
type AssessmentOutcome struct {
	ActivityRef

	Passed  bool
	Perfect bool
}

// AssessmentAwardResult contains the per-row results of AwardAssessmentXP.
type AssessmentAwardResult struct {
	Results []*AwardResult

	// PointsAwarded counts only newly inserted base rows (no bonuses).
	PointsAwarded int
}

// AwardAssessmentXP awards completion, and pass and perfect-score when earned,
// all keyed by the attempt id. A repeated call for the same attempt awards nothing.
func (h *AwardHandler) AwardAssessmentXP(ctx context.Context, outcome AssessmentOutcome) (*AssessmentAwardResult, error) {
	types := []ledger.ActivityType{ledger.ActivityAssessmentCompletion}
	if outcome.Passed || outcome.Perfect {
		types = append(types, ledger.ActivityAssessmentPass)
	}
	if outcome.Perfect {
		types = append(types, ledger.ActivityAssessmentPerfect)
	}

	result := &AssessmentAwardResult{Results: make([]*AwardResult, 0, len(types))}
	var errs error
	for _, t := range types {
		res, err := h.awardRef(ctx, outcome.ActivityRef, t)
		if err != nil {
			// Later rows must not be written if an earlier one failed to store.
			multierr.AppendInto(&errs, err)
			break
		}
		result.Results = append(result.Results, res)
		if res.Inserted {
			result.PointsAwarded += res.Transaction.Points
		}
	}
	return result, errs
}

// AwardSessionAttendance awards attendance of one session.
func (h *AwardHandler) AwardSessionAttendance(ctx context.Context, ref ActivityRef) (*AwardResult, error) {
	return h.awardRef(ctx, ref, ledger.ActivitySessionAttendance)
}

// AwardLevelCompletion awards completion of one level.
func (h *AwardHandler) AwardLevelCompletion(ctx context.Context, ref ActivityRef) (*AwardResult, error) {
	return h.awardRef(ctx, ref, ledger.ActivityLevelCompletion)
}

// AwardProjectMembership awards joining a project.
func (h *AwardHandler) AwardProjectMembership(ctx context.Context, ref ActivityRef) (*AwardResult, error) {
	return h.awardRef(ctx, ref, ledger.ActivityProjectMembership)
}

// AwardProjectAward awards a project prize.
func (h *AwardHandler) AwardProjectAward(ctx context.Context, ref ActivityRef) (*AwardResult, error) {
	return h.awardRef(ctx, ref, ledger.ActivityProjectAward)
}

// AwardCourseCompletion awards completion of a course.
func (h *AwardHandler) AwardCourseCompletion(ctx context.Context, ref ActivityRef) (*AwardResult, error) {
	return h.awardRef(ctx, ref, ledger.ActivityCourseCompletion)
}
