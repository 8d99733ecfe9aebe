package program

import (
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	TransactionsInitialized  prometheus.Counter
	Executions               *prometheus.CounterVec
	Invocations              *prometheus.CounterVec
	InstructionsPerExecution prometheus.Histogram
}

// NewMetrics creates the program's metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsInitialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "executor",
			Name:      "transactions_initialized_total",
			Help:      "Transaction records created",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "executor",
			Name:      "executions_total",
			Help:      "Execute calls by result",
		}, []string{"result"}),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "executor",
			Name:      "invocations_total",
			Help:      "Downstream program invocations by program and result",
		}, []string{"program", "result"}),
		InstructionsPerExecution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "executor",
			Name:      "instructions_per_execution",
			Help:      "Instructions invoked per execute call",
			Buckets:   prometheus.LinearBuckets(0, 4, 8),
		}),
	}

	reg.MustRegister(m.TransactionsInitialized, m.Executions, m.Invocations, m.InstructionsPerExecution)
	return m
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// the helpers below accept a nil receiver so a Program can run without metrics

func (m *Metrics) transactionInitialized() {
	if m == nil {
		return
	}
	m.TransactionsInitialized.Inc()
}

func (m *Metrics) executionFinished(err error) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) invocationFinished(programId solana.PublicKey, err error) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(programId.String(), resultLabel(err)).Inc()
}

func (m *Metrics) instructionsExecuted(n int) {
	if m == nil {
		return
	}
	m.InstructionsPerExecution.Observe(float64(n))
}
