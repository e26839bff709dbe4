package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels used by workflow counters.
const (
	OutcomeSucceeded = "succeeded"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

// WorkflowMetrics — метрики добавления позиций и подтверждения заказа.
type WorkflowMetrics struct {
	addToOrder   *prometheus.CounterVec
	confirmOrder *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	skippedSteps *prometheus.CounterVec

	confirmationStatus   *prometheus.CounterVec
	confirmationDuration prometheus.Histogram
	confirmInFlight      prometheus.Gauge

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewWorkflowMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewWorkflowMetrics() *WorkflowMetrics {
	return NewWorkflowMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWorkflowMetricsWithRegisterer регистрирует метрики в заданном реестре.
// Повторная регистрация переиспользует уже зарегистрированные коллекторы.
func NewWorkflowMetricsWithRegisterer(registerer prometheus.Registerer) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &WorkflowMetrics{
		addToOrder: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_add_to_order_total",
			Help: "Total number of add-to-order calls grouped by outcome",
		}, []string{"outcome"})),
		confirmOrder: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_confirm_order_total",
			Help: "Total number of confirm-order calls grouped by outcome",
		}, []string{"outcome"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderdesk_workflow_duration_seconds",
			Help:    "Duration of workflow operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"})),
		skippedSteps: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_workflow_skipped_steps_total",
			Help: "Workflow steps skipped because the caller lacks the permission",
		}, []string{"step"})),
		confirmationStatus: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_confirmation_responses_total",
			Help: "External confirmation responses grouped by HTTP status code",
		}, []string{"code"})),
		confirmationDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderdesk_confirmation_request_duration_seconds",
			Help:    "Duration of the external confirmation call in seconds",
			Buckets: prometheus.DefBuckets,
		})),
		confirmInFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderdesk_confirmations_in_flight",
			Help: "Number of external confirmation calls currently in progress",
		})),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderdesk_timeline_events_total",
			Help: "Total number of timeline events recorded",
		})),
		outboxEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderdesk_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		})),
	}
}

// register регистрирует коллектор или возвращает уже зарегистрированный с тем же описанием.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordAddToOrder учитывает итог и длительность добавления позиций.
func (m *WorkflowMetrics) RecordAddToOrder(outcome string, duration time.Duration) {
	m.addToOrder.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues("add_to_order").Observe(duration.Seconds())
}

// RecordConfirmOrder учитывает итог и длительность подтверждения.
func (m *WorkflowMetrics) RecordConfirmOrder(outcome string, duration time.Duration) {
	m.confirmOrder.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues("confirm_order").Observe(duration.Seconds())
}

// RecordSkippedStep учитывает пропущенный из-за прав шаг.
func (m *WorkflowMetrics) RecordSkippedStep(step string) {
	m.skippedSteps.WithLabelValues(step).Inc()
}

// RecordConfirmationResponse учитывает ответ внешней системы. code=0 — ошибка транспорта.
func (m *WorkflowMetrics) RecordConfirmationResponse(code int, duration time.Duration) {
	label := strconv.Itoa(code)
	if code == 0 {
		label = "transport_error"
	}
	m.confirmationStatus.WithLabelValues(label).Inc()
	m.confirmationDuration.Observe(duration.Seconds())
}

// ConfirmationStarted увеличивает gauge активных внешних вызовов.
func (m *WorkflowMetrics) ConfirmationStarted() {
	m.confirmInFlight.Inc()
}

// ConfirmationFinished уменьшает gauge активных внешних вызовов.
func (m *WorkflowMetrics) ConfirmationFinished() {
	m.confirmInFlight.Dec()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *WorkflowMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *WorkflowMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
