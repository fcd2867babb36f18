package dto

import "github.com/noah-isme/cbt-go-api/internal/models"

// ClassCreateRequest creates a class.
type ClassCreateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=128"`
	Level string `json:"level" validate:"omitempty,max=64"`
}

// SubjectCreateRequest creates a subject.
type SubjectCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
	Code string `json:"code" validate:"omitempty,max=32"`
}

// TeacherCreateRequest enrols a teacher account.
type TeacherCreateRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	StaffNumber string `json:"staff_number" validate:"omitempty,max=64"`
}

// StudentCreateRequest enrols a student account.
type StudentCreateRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=255"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ClassID         *uint  `json:"class_id"`
	AdmissionNumber string `json:"admission_number" validate:"omitempty,max=64"`
}

// StudentListRequest filters the student directory.
type StudentListRequest struct {
	ClassID  *uint
	Search   string `validate:"omitempty,max=128"`
	Page     int
	PageSize int
}

// ClassResponse serializes a class.
type ClassResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

// SubjectResponse serializes a subject.
type SubjectResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// TeacherResponse serializes a teacher profile.
type TeacherResponse struct {
	ID          uint   `json:"id"`
	UserID      uint   `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	StaffNumber string `json:"staff_number"`
}

// StudentResponse serializes a student profile.
type StudentResponse struct {
	ID              uint           `json:"id"`
	UserID          uint           `json:"user_id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	AdmissionNumber string         `json:"admission_number"`
	Class           *ClassResponse `json:"class,omitempty"`
}

// StudentListResponse wraps a paginated student listing.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewClassResponse converts a class model.
func NewClassResponse(class models.Class) ClassResponse {
	return ClassResponse{ID: class.ID, Name: class.Name, Level: class.Level}
}

// NewSubjectResponse converts a subject model.
func NewSubjectResponse(subject models.Subject) SubjectResponse {
	return SubjectResponse{ID: subject.ID, Name: subject.Name, Code: subject.Code}
}

// NewTeacherResponse converts a teacher model.
func NewTeacherResponse(teacher models.Teacher) TeacherResponse {
	return TeacherResponse{
		ID:          teacher.ID,
		UserID:      teacher.UserID,
		Name:        teacher.User.Name,
		Email:       teacher.User.Email,
		StaffNumber: teacher.StaffNumber,
	}
}

// NewStudentResponse converts a student model.
func NewStudentResponse(student models.Student) StudentResponse {
	response := StudentResponse{
		ID:              student.ID,
		UserID:          student.UserID,
		Name:            student.User.Name,
		Email:           student.User.Email,
		AdmissionNumber: student.AdmissionNumber,
	}
	if student.Class != nil {
		class := NewClassResponse(*student.Class)
		response.Class = &class
	}
	return response
}
