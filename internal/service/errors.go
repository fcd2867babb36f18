package service

import (
	"errors"

	"github.com/noah-isme/cbt-go-api/internal/policy"
)

var (
	// ErrNotFound is the base of every "unknown id" error.
	ErrNotFound = errors.New("not found")
	// ErrConflict is the base of every state-conflict error.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is the base of request errors the validator cannot express.
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrSchoolNotFound          = kindError(ErrNotFound, "school not found")
	ErrUserNotFound            = kindError(ErrNotFound, "user not found")
	ErrStudentNotFound         = kindError(ErrNotFound, "student not found")
	ErrStudentProfileMissing   = kindError(ErrNotFound, "student profile not found")
	ErrTeacherProfileMissing   = kindError(ErrNotFound, "teacher profile not found")
	ErrClassNotFound           = kindError(ErrNotFound, "class not found")
	ErrSubjectNotFound         = kindError(ErrNotFound, "subject not found")
	ErrExamNotFound            = kindError(ErrNotFound, "exam not found")
	ErrResultNotFound          = kindError(ErrNotFound, "result not found")
	ErrAcademicResultNotFound  = kindError(ErrNotFound, "academic result not found")
	ErrLessonPlanNotFound      = kindError(ErrNotFound, "lesson plan not found")
	ErrPaymentNotFound         = kindError(ErrNotFound, "payment not found")
	ErrNotificationNotFound    = kindError(ErrNotFound, "notification not found")
	ErrExamEnded               = kindError(ErrConflict, "exam has ended")
	ErrExamNotOpen             = kindError(ErrConflict, "exam is not open")
	ErrAlreadySubmitted        = kindError(ErrConflict, "exam already submitted")
	ErrAttemptsInProgress      = kindError(ErrConflict, "students have already started this exam")
	ErrEmailTaken              = kindError(ErrConflict, "email already registered")
	ErrDuplicateAcademicResult = kindError(ErrConflict, "a result already exists for this student, subject, term and session")
	ErrNothingToPublish        = kindError(ErrConflict, "no approved results match")
	ErrConcurrentChange        = kindError(ErrConflict, "records changed while processing, retry")
	ErrSchoolStatus            = kindError(ErrConflict, "school status does not allow this action")
	ErrUnknownQuestion         = kindError(ErrInvalidInput, "answer references a question outside this exam")
	ErrUnknownPlan             = kindError(ErrInvalidInput, "unknown subscription plan")
	ErrInvalidSignature        = kindError(ErrInvalidInput, "invalid notification signature")
	ErrAttachmentType          = kindError(ErrInvalidInput, "attachment type not allowed")
	ErrInvalidCredentials      = kindError(policy.ErrUnauthenticated, "invalid email or password")
	ErrSchoolInactive          = kindError(policy.ErrForbidden, "school is not approved")
)

// domainError carries a client-facing message and unwraps to its category sentinel, so handlers
// can map the category while surfacing the message verbatim.
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }

func kindError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}
