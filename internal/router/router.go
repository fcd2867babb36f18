package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/cbt-go-api/internal/config"
	"github.com/noah-isme/cbt-go-api/internal/handler"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler           *handler.AuthHandler
	AdminHandler          *handler.AdminHandler
	ActivityHandler       *handler.AdminActivityHandler
	DirectoryHandler      *handler.DirectoryHandler
	TeacherExamHandler    *handler.TeacherExamHandler
	StudentExamHandler    *handler.StudentExamHandler
	AcademicResultHandler *handler.AcademicResultHandler
	LessonPlanHandler     *handler.LessonPlanHandler
	PaymentHandler        *handler.PaymentHandler
	NotificationHandler   *handler.NotificationHandler
	HealthChecks          map[string]handler.HealthCheckFunc
	JWTMiddleware         fiber.Handler
}

// Register wires the HTTP routes into the fiber application. Public routes are registered
// before any group that installs the JWT middleware on an overlapping prefix.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staff := middleware.RequireRole(models.RoleSuperAdmin, models.RoleSchoolAdmin, models.RoleTeacher)
	admins := middleware.RequireRole(models.RoleSuperAdmin, models.RoleSchoolAdmin)
	students := middleware.RequireRole(models.RoleStudent)

	if deps.AuthHandler != nil {
		public := api.Group("/auth")
		public.Use("/login", middleware.RateLimit("login", cfg.LoginRateLimit, time.Minute))
		deps.AuthHandler.RegisterPublic(public)
		deps.AuthHandler.RegisterProtected(api.Group("/auth", jwtMiddleware))
	}

	if deps.PaymentHandler != nil {
		deps.PaymentHandler.RegisterWebhook(api.Group("/payments"))
		deps.PaymentHandler.Register(api.Group("/payments", jwtMiddleware, admins))
	}

	// Platform operators
	if deps.AdminHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleSuperAdmin))
		deps.AdminHandler.Register(admin)
		if deps.ActivityHandler != nil {
			deps.ActivityHandler.Register(admin.Group("/activity"))
		}
	}

	// School administration
	if deps.DirectoryHandler != nil {
		school := api.Group("/school", jwtMiddleware, middleware.RequireRole(models.RoleSchoolAdmin, models.RoleTeacher))
		deps.DirectoryHandler.Register(school)
		if deps.ActivityHandler != nil {
			deps.ActivityHandler.Register(school.Group("/activity", middleware.RequireRole(models.RoleSchoolAdmin)))
		}
	}

	// Exams
	if deps.TeacherExamHandler != nil {
		deps.TeacherExamHandler.Register(api.Group("/teacher/exams", jwtMiddleware, staff))
	}
	if deps.StudentExamHandler != nil {
		submitLimiter := middleware.RateLimit("exam-submit", cfg.SubmissionRateLimit, time.Minute)
		deps.StudentExamHandler.Register(api.Group("/student/exams", jwtMiddleware, students), submitLimiter)
	}

	// Approval pipelines
	if deps.AcademicResultHandler != nil {
		deps.AcademicResultHandler.RegisterStudent(api.Group("/student/academic-results", jwtMiddleware, students))
		deps.AcademicResultHandler.Register(api.Group("/academic-results", jwtMiddleware, staff))
	}
	if deps.LessonPlanHandler != nil {
		deps.LessonPlanHandler.Register(api.Group("/lesson-plans", jwtMiddleware, staff))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}
}
