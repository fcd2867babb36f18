package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&School{},
		&User{},
		&Class{},
		&Subject{},
		&Student{},
		&Teacher{},
		&Exam{},
		&Question{},
		&ExamAttempt{},
		&Answer{},
		&Result{},
		&AcademicResult{},
		&LessonPlan{},
		&Payment{},
		&ActivityLog{},
		&Notification{},
	}
}
