package workflow

// LessonPlanStatus is the review state of a lesson plan.
type LessonPlanStatus string

const (
	LessonPlanDraft         LessonPlanStatus = "DRAFT"
	LessonPlanSubmitted     LessonPlanStatus = "SUBMITTED"
	LessonPlanApproved      LessonPlanStatus = "APPROVED"
	LessonPlanRejected      LessonPlanStatus = "REJECTED"
	LessonPlanNeedsRevision LessonPlanStatus = "NEEDS_REVISION"
)

// LessonPlanAction is an author or reviewer request.
type LessonPlanAction string

const (
	LessonPlanSubmit          LessonPlanAction = "submit"
	LessonPlanApprove         LessonPlanAction = "approve"
	LessonPlanReject          LessonPlanAction = "reject"
	LessonPlanRequestRevision LessonPlanAction = "request_revision"
)

var lessonPlanTable = table[LessonPlanStatus, LessonPlanAction]{
	LessonPlanDraft:         {LessonPlanSubmit: LessonPlanSubmitted},
	LessonPlanNeedsRevision: {LessonPlanSubmit: LessonPlanSubmitted},
	LessonPlanSubmitted: {
		LessonPlanApprove:         LessonPlanApproved,
		LessonPlanReject:          LessonPlanRejected,
		LessonPlanRequestRevision: LessonPlanNeedsRevision,
	},
}

// NextLessonPlanStatus returns the state reached by applying action to current.
func NextLessonPlanStatus(current LessonPlanStatus, action LessonPlanAction) (LessonPlanStatus, error) {
	return lessonPlanTable.next("lesson plan", current, action)
}

// LessonPlanSources lists the states from which action is legal.
func LessonPlanSources(action LessonPlanAction) []LessonPlanStatus {
	return lessonPlanTable.sources(action)
}

// Editable reports whether the author may still change the plan body.
func (s LessonPlanStatus) Editable() bool {
	return s == LessonPlanDraft || s == LessonPlanNeedsRevision
}

// IsReviewAction reports whether the action belongs to the reviewer.
func (a LessonPlanAction) IsReviewAction() bool {
	switch a {
	case LessonPlanApprove, LessonPlanReject, LessonPlanRequestRevision:
		return true
	}
	return false
}
