package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/jobs"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scenario"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	translator ut.Translator
	publisher  queue.Publisher
	jobStore   *jobs.Store
	scheduler  *scheduler.Scheduler
	scenarios  *scenario.Engine

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, publisher queue.Publisher, jobStore *jobs.Store, s *scheduler.Scheduler) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		publisher:  publisher,
		jobStore:   jobStore,
		scheduler:  s,
		scenarios:  scenario.NewEngine(s, slog.Default(), cfg.Engine.ScenarioParallelism),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)
		r.Use(h.preventInactiveUser)

		r.Route("/me", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/", h.UpdateMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.UserRole{domain.UserRoleAdmin}))
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetAllUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUser)
				r.With(h.preventOperateInitialAdmin).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).Delete("/", h.DeleteUser)
				r.Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.GetAllEmployees)
			r.Post("/", h.UpsertEmployees)
			r.Post("/import", h.ImportEmployees)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.employee)
				r.Get("/", h.GetEmployee)
				r.Delete("/", h.DeleteEmployee)
			})
		})

		r.Route("/shift-templates", func(r chi.Router) {
			r.Post("/", h.CreateShiftTemplate)
			r.Get("/", h.GetAllShiftTemplates)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.shiftTemplate)
				r.Get("/", h.GetShiftTemplate)
				r.Patch("/", h.UpdateShiftTemplate)
				r.Delete("/", h.DeleteShiftTemplate)
			})
		})

		r.Route("/schedule-plans", func(r chi.Router) {
			r.Post("/", h.CreateSchedulePlan)
			r.Get("/", h.GetAllSchedulePlans)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.schedulePlan)
				r.Get("/", h.GetSchedulePlanByID)
				r.Patch("/", h.UpdateSchedulePlan)
				r.Delete("/", h.DeleteSchedulePlan)
				r.Route("/availability", func(r chi.Router) {
					r.Get("/", h.GetAvailability)
					r.Put("/", h.ReplaceAvailability)
					r.Post("/import", h.ImportAvailability)
				})
				r.Route("/demand", func(r chi.Router) {
					r.Get("/", h.GetDemand)
					r.Put("/", h.ReplaceDemand)
					r.Post("/import", h.ImportDemand)
				})
				r.Route("/scheduling-result", func(r chi.Router) {
					r.Get("/", h.GetSchedulingResult)
					r.Get("/export", h.ExportSchedulingResult)
					r.Post("/", h.SubmitSchedulingResult)
					r.Post("/generate", h.GenerateSchedulingResult)
					r.Post("/generate-async", h.GenerateSchedulingResultAsync)
					r.Post("/scenarios", h.RunScenarios)
				})
			})
		})

		r.Get("/scheduling-jobs/{id}", h.GetSchedulingJob)
	})
}
