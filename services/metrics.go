package services

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the progression counters. A nil *Metrics records nothing.
type Metrics struct {
	claims               *prometheus.CounterVec
	streakTransitions    *prometheus.CounterVec
	xpGranted            *prometheus.CounterVec
	notificationsDropped prometheus.Counter
}

// NewMetrics builds the counters and registers them on reg. A nil reg
// leaves them unregistered, which tests use to avoid global collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnquest",
			Name:      "daily_bonus_claims_total",
			Help:      "Daily bonus claim attempts by outcome.",
		}, []string{"outcome"}),
		streakTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnquest",
			Name:      "streak_transitions_total",
			Help:      "Login streak transitions by kind.",
		}, []string{"kind"}),
		xpGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnquest",
			Name:      "xp_granted_total",
			Help:      "XP granted by source.",
		}, []string{"source"}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "learnquest",
			Name:      "notifications_dropped_total",
			Help:      "Streak notifications dropped because the queue was full or the write failed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.claims, m.streakTransitions, m.xpGranted, m.notificationsDropped)
	}
	return m
}

func (m *Metrics) claim(outcome ClaimOutcome) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) transition(kind Transition) {
	if m == nil {
		return
	}
	m.streakTransitions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) xp(source string, amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpGranted.WithLabelValues(source).Add(float64(amount))
}

func (m *Metrics) notificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}
