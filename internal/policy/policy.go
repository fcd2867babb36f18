// Package policy centralises authorization decisions. Handlers build a Principal from the
// verified token, services describe the Resource they are about to touch, and Evaluate
// answers allow or deny.
package policy

import (
	"errors"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

var (
	// ErrUnauthenticated means no usable identity was presented.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the identity lacks the role or ownership for the action.
	ErrForbidden = errors.New("insufficient permissions")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID    uint
	Role      string
	SchoolID  uint
	StudentID uint
	TeacherID uint
}

// Authenticated reports whether the principal carries an identity and a role.
func (p Principal) Authenticated() bool {
	return p.UserID != 0 && p.Role != ""
}

// Own describes the resources the principal owns, used for role-only prechecks.
func (p Principal) Own() Resource {
	return Resource{SchoolID: p.SchoolID, TeacherID: p.TeacherID, StudentID: p.StudentID}
}

// Resource carries the ownership facts of the record being acted upon. Zero fields are
// "not applicable".
type Resource struct {
	SchoolID  uint
	TeacherID uint
	StudentID uint
}

// Action names an operation guarded by the policy.
type Action string

const (
	ExamAuthor       Action = "exam.author"
	ExamManage       Action = "exam.manage"
	ExamTake         Action = "exam.take"
	ExamSubmit       Action = "exam.submit"
	ResultAuthor     Action = "academic_result.author"
	ResultReview     Action = "academic_result.review"
	ResultRead       Action = "academic_result.read"
	LessonPlanAuthor Action = "lesson_plan.author"
	LessonPlanReview Action = "lesson_plan.review"
	LessonPlanRead   Action = "lesson_plan.read"
	DirectoryManage  Action = "directory.manage"
	DirectoryRead    Action = "directory.read"
	SchoolReview     Action = "school.review"
	SchoolRead       Action = "school.read"
	PaymentInitiate  Action = "payment.initiate"
	PaymentView      Action = "payment.view"
	ActivityView     Action = "activity.view"
)

type rule func(p Principal, r Resource) bool

var rules = map[Action]rule{
	ExamAuthor:       teacherInSchool,
	ExamManage:       anyOf(superAdmin, schoolAdminOf, owningTeacher),
	ExamTake:         studentInSchool,
	ExamSubmit:       studentInSchool,
	ResultAuthor:     owningTeacher,
	ResultReview:     anyOf(superAdmin, schoolAdminOf),
	ResultRead:       anyOf(superAdmin, schoolAdminOf, owningTeacher, owningStudent),
	LessonPlanAuthor: owningTeacher,
	LessonPlanReview: schoolAdminOf,
	LessonPlanRead:   anyOf(superAdmin, schoolAdminOf, owningTeacher),
	DirectoryManage:  anyOf(superAdmin, schoolAdminOf),
	DirectoryRead:    anyOf(superAdmin, schoolAdminOf, teacherInSchool),
	SchoolReview:     superAdmin,
	SchoolRead:       anyOf(superAdmin, schoolAdminOf),
	PaymentInitiate:  schoolAdminOf,
	PaymentView:      anyOf(superAdmin, schoolAdminOf),
	ActivityView:     anyOf(superAdmin, schoolAdminOf),
}

// Evaluate returns nil when p may perform a on r, ErrUnauthenticated when p is anonymous and
// ErrForbidden otherwise. Unknown actions are denied.
func Evaluate(p Principal, a Action, r Resource) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	check, ok := rules[a]
	if !ok || !check(p, r) {
		return ErrForbidden
	}
	return nil
}

// Precheck evaluates a against the principal's own resources. It answers "could this
// caller ever do a" before any record has been loaded.
func Precheck(p Principal, a Action) error {
	return Evaluate(p, a, p.Own())
}

func anyOf(rules ...rule) rule {
	return func(p Principal, r Resource) bool {
		for _, check := range rules {
			if check(p, r) {
				return true
			}
		}
		return false
	}
}

func superAdmin(p Principal, _ Resource) bool {
	return p.Role == models.RoleSuperAdmin
}

func sameSchool(p Principal, r Resource) bool {
	return p.SchoolID != 0 && p.SchoolID == r.SchoolID
}

func schoolAdminOf(p Principal, r Resource) bool {
	return p.Role == models.RoleSchoolAdmin && sameSchool(p, r)
}

func teacherInSchool(p Principal, r Resource) bool {
	return p.Role == models.RoleTeacher && p.TeacherID != 0 && sameSchool(p, r)
}

func owningTeacher(p Principal, r Resource) bool {
	return teacherInSchool(p, r) && r.TeacherID == p.TeacherID
}

func studentInSchool(p Principal, r Resource) bool {
	return p.Role == models.RoleStudent && sameSchool(p, r)
}

func owningStudent(p Principal, r Resource) bool {
	return studentInSchool(p, r) && p.StudentID != 0 && r.StudentID == p.StudentID
}
