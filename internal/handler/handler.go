package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/allocation"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
)

type AllocationService interface {
	CreateAndAnnounce(ctx context.Context, shiftType string, requiredPeople int32) (*allocation.CreateResult, error)
	SubmitApplication(ctx context.Context, shiftID int64, userID string) (*allocation.ApplyResult, error)
	ResolveShift(ctx context.Context, shiftID int64) (*allocation.ResolveResult, error)
	GetShift(ctx context.Context, id int64) (*domain.Shift, error)
	ListShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error)
	ListApplications(ctx context.Context, shiftID int64) ([]*domain.Application, error)
	ListAssignments(ctx context.Context, shiftID int64) ([]*domain.Assignment, error)
	UserHistory(ctx context.Context, userID string) ([]*domain.ShiftHistoryEntry, error)
}

type ProfileRefresher interface {
	Refresh(ctx context.Context, userID string) (*domain.UserProfile, error)
}

type Replier interface {
	ReplyMessage(ctx context.Context, replyToken string, messages ...line.Message) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Service  AllocationService
	Profiles ProfileRefresher
	Replier  Replier
	Redis    *redis.Client // 为 nil 时不对 webhook 事件去重
	DB       Pinger
	Metrics  http.Handler // 为 nil 时不暴露 /metrics
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	service     AllocationService
	profiles    ProfileRefresher
	replier     Replier
	redisClient *redis.Client
	db          Pinger
	metrics     http.Handler
	translator  ut.Translator

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, deps Dependencies) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		service:     deps.Service,
		profiles:    deps.Profiles,
		replier:     deps.Replier,
		redisClient: deps.Redis,
		db:          deps.DB,
		metrics:     deps.Metrics,
		translator:  trans,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/healthz", h.Healthz)
	if h.metrics != nil {
		h.Mux.Method(http.MethodGet, "/metrics", h.metrics)
	}

	// LINE 平台的回调
	h.Mux.Post("/webhook", h.Webhook)

	h.Mux.Route("/shifts", func(r chi.Router) {
		r.Post("/", h.CreateShift)
		r.Get("/", h.GetAllShifts)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.shiftID)
			r.Get("/", h.GetShift)
			r.Get("/applications", h.GetShiftApplications)
			r.Get("/assignments", h.GetShiftAssignments)
			r.Post("/apply", h.ApplyForShift)
			r.Post("/random", h.RandomSelect)
		})
	})

	h.Mux.Get("/users/{id}/history", h.GetUserShiftHistory)
}
