package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/expenseflow-prototype/internal/console/handler"
	"github.com/xela07ax/expenseflow-prototype/internal/infra"
	"github.com/xela07ax/expenseflow-prototype/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler     *handler.AuthHandler     // /auth/token
	expenseHandler  *handler.ExpenseHandler  // /v1/expenses
	approvalHandler *handler.ApprovalHandler // /v1/approvals (Decision Queue)
	ruleHandler     *handler.RuleHandler     // /v1/rules
	auditHandler    *handler.AuditHandler    // /v1/audit (Logs)

	metricsReg *prometheus.Registry
}

// NewConsoleServer инициализирует API-сервер со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	expenseH *handler.ExpenseHandler,
	approvalH *handler.ApprovalHandler,
	ruleH *handler.RuleHandler,
	auditH *handler.AuditHandler,
	metricsReg *prometheus.Registry,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		cfg:             cfg,
		authValidator:   validator,
		authHandler:     authH,
		expenseHandler:  expenseH,
		approvalHandler: approvalH,
		ruleHandler:     ruleH,
		auditHandler:    auditH,
		metricsReg:      metricsReg,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		if s.metricsReg != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.metricsReg, promhttp.HandlerOpts{}))
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Расходы: подача и карточка с журналом согласования
		r.Route("/v1/expenses", func(r chi.Router) {
			r.Post("/", s.expenseHandler.Submit)
			r.Get("/stalled", s.expenseHandler.Stalled) // Health-отчет для операторов
			r.Get("/{id}", s.expenseHandler.GetCard)
		})

		// Очередь согласования и решения
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Get("/", s.approvalHandler.List) // Очередь записей на решение
			r.Post("/{id}/decide", s.approvalHandler.Decide)
		})

		// Администрирование правил согласования
		r.Route("/v1/rules", func(r chi.Router) {
			r.Get("/", s.ruleHandler.List)
			r.Post("/", s.ruleHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.ruleHandler.Get)
				r.Put("/", s.ruleHandler.Update)
				r.Delete("/", s.ruleHandler.Delete)
			})
		})

		// Аудит и Логи (Observability)
		r.Get("/v1/audit", s.auditHandler.GetLogs)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
