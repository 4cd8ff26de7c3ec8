package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: решения по записям журнала
	DecisionsTotal *prometheus.CounterVec

	// Latency: сколько занимает транзакция решения целиком
	DecisionDuration prometheus.Histogram

	// Открытые этапы (activations)
	StagesOpened prometheus.Counter

	// Health-сигнал для операторов: этап разрешился в пустой состав
	StalledWorkflows prometheus.Counter

	// Ошибки доставки уведомлений (решение сохранено, сигнал потерян)
	NotifyErrors prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "expenseflow_decisions_total",
			Help: "Total number of approve/reject decisions processed.",
		}, []string{"decision"}), // approved / rejected

		DecisionDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "expenseflow_decision_duration_seconds",
			Help:    "Histogram of decision transaction latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		StagesOpened: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_stages_opened_total",
			Help: "Total number of approval stages activated.",
		}),

		StalledWorkflows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_stalled_workflows_total",
			Help: "Stages that resolved to zero eligible approvers (operator attention required).",
		}),

		NotifyErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "expenseflow_notify_errors_total",
			Help: "Notifications that could not be published after a committed decision.",
		}),
	}
}
