package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives counters from the analysis pipeline and the decision engine.
// Implementations must be safe for concurrent use.
type Sink interface {
	IncSubmissions()
	IncJobsProcessed(level string)
	IncJobsFailed(reason string)
	IncQuarantined(itemType string)
	IncBlacklisted(itemType string)
	IncIPBlocked()
	IncAttacksDetected(attackType string)
	IncShieldDecision(decision string)
	ObserveAnalysisDuration(d time.Duration)
}

// Prometheus exports the sink counters as Prometheus collectors.
type Prometheus struct {
	submissions     prometheus.Counter
	jobsProcessed   *prometheus.CounterVec
	jobsFailed      *prometheus.CounterVec
	quarantined     *prometheus.CounterVec
	blacklisted     *prometheus.CounterVec
	ipBlocked       prometheus.Counter
	attacks         *prometheus.CounterVec
	shield          *prometheus.CounterVec
	analysisSeconds prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewPrometheus builds the collectors. Call Register once at startup.
func NewPrometheus() *Prometheus {
	return &Prometheus{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishguard_submissions_total",
			Help: "Total number of URLs accepted for analysis",
		}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_jobs_processed_total",
			Help: "Total number of analysis jobs finished, by risk level",
		}, []string{"level"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_jobs_failed_total",
			Help: "Total number of analysis jobs marked failed, by reason",
		}, []string{"reason"}),
		quarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_quarantined_total",
			Help: "Total number of items placed in quarantine",
		}, []string{"item_type"}),
		blacklisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_blacklisted_total",
			Help: "Total number of blacklist inserts or reactivations",
		}, []string{"item_type"}),
		ipBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishguard_ip_blocked_total",
			Help: "Total number of client IPs blocked automatically",
		}),
		attacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_attacks_detected_total",
			Help: "Total number of attacks detected, by type",
		}, []string{"attack_type"}),
		shield: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_shield_requests_total",
			Help: "Total number of requests evaluated by the shield, by decision",
		}, []string{"decision"}),
		analysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phishguard_analysis_duration_seconds",
			Help:    "Time spent analyzing one submission",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_http_requests_total",
			Help: "Total number of HTTP requests handled",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phishguard_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Register registers Prometheus collectors. Call once at startup.
func (p *Prometheus) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		p.submissions, p.jobsProcessed, p.jobsFailed, p.quarantined, p.blacklisted,
		p.ipBlocked, p.attacks, p.shield, p.analysisSeconds, p.httpRequests, p.httpLatency,
	)
}

func (p *Prometheus) IncSubmissions()                { p.submissions.Inc() }
func (p *Prometheus) IncJobsProcessed(level string)  { p.jobsProcessed.WithLabelValues(level).Inc() }
func (p *Prometheus) IncJobsFailed(reason string)    { p.jobsFailed.WithLabelValues(reason).Inc() }
func (p *Prometheus) IncQuarantined(itemType string) { p.quarantined.WithLabelValues(itemType).Inc() }
func (p *Prometheus) IncBlacklisted(itemType string) { p.blacklisted.WithLabelValues(itemType).Inc() }
func (p *Prometheus) IncIPBlocked()                  { p.ipBlocked.Inc() }
func (p *Prometheus) IncAttacksDetected(attackType string) {
	p.attacks.WithLabelValues(attackType).Inc()
}
func (p *Prometheus) IncShieldDecision(decision string) { p.shield.WithLabelValues(decision).Inc() }

func (p *Prometheus) ObserveAnalysisDuration(d time.Duration) {
	p.analysisSeconds.Observe(d.Seconds())
}

// ObserveRequest records one handled HTTP request.
func (p *Prometheus) ObserveRequest(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Atomic is an in-memory sink backed by atomic counters.
type Atomic struct {
	submissions   atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	quarantined   atomic.Int64
	blacklisted   atomic.Int64
	ipBlocked     atomic.Int64
	attacks       atomic.Int64
	shieldBlocked atomic.Int64
	analysisNanos atomic.Int64
}

// Snapshot is a point-in-time copy of the Atomic counters.
type Snapshot struct {
	Submissions   int64         `json:"submissions"`
	JobsProcessed int64         `json:"jobs_processed"`
	JobsFailed    int64         `json:"jobs_failed"`
	Quarantined   int64         `json:"quarantined"`
	Blacklisted   int64         `json:"blacklisted"`
	IPBlocked     int64         `json:"ip_blocked"`
	Attacks       int64         `json:"attacks_detected"`
	ShieldBlocked int64         `json:"shield_blocked"`
	AnalysisTime  time.Duration `json:"analysis_time"`
}

func (a *Atomic) IncSubmissions()                         { a.submissions.Add(1) }
func (a *Atomic) IncJobsProcessed(string)                 { a.jobsProcessed.Add(1) }
func (a *Atomic) IncJobsFailed(string)                    { a.jobsFailed.Add(1) }
func (a *Atomic) IncQuarantined(string)                   { a.quarantined.Add(1) }
func (a *Atomic) IncBlacklisted(string)                   { a.blacklisted.Add(1) }
func (a *Atomic) IncIPBlocked()                           { a.ipBlocked.Add(1) }
func (a *Atomic) IncAttacksDetected(string)               { a.attacks.Add(1) }
func (a *Atomic) ObserveAnalysisDuration(d time.Duration) { a.analysisNanos.Add(int64(d)) }

func (a *Atomic) IncShieldDecision(decision string) {
	if decision == "block" {
		a.shieldBlocked.Add(1)
	}
}

// Snapshot returns the current counter values.
func (a *Atomic) Snapshot() Snapshot {
	return Snapshot{
		Submissions:   a.submissions.Load(),
		JobsProcessed: a.jobsProcessed.Load(),
		JobsFailed:    a.jobsFailed.Load(),
		Quarantined:   a.quarantined.Load(),
		Blacklisted:   a.blacklisted.Load(),
		IPBlocked:     a.ipBlocked.Load(),
		Attacks:       a.attacks.Load(),
		ShieldBlocked: a.shieldBlocked.Load(),
		AnalysisTime:  time.Duration(a.analysisNanos.Load()),
	}
}

// Multi fans every call out to each sink.
type Multi []Sink

func (m Multi) IncSubmissions() {
	for _, s := range m {
		s.IncSubmissions()
	}
}

func (m Multi) IncJobsProcessed(level string) {
	for _, s := range m {
		s.IncJobsProcessed(level)
	}
}

func (m Multi) IncJobsFailed(reason string) {
	for _, s := range m {
		s.IncJobsFailed(reason)
	}
}

func (m Multi) IncQuarantined(itemType string) {
	for _, s := range m {
		s.IncQuarantined(itemType)
	}
}

func (m Multi) IncBlacklisted(itemType string) {
	for _, s := range m {
		s.IncBlacklisted(itemType)
	}
}

func (m Multi) IncIPBlocked() {
	for _, s := range m {
		s.IncIPBlocked()
	}
}

func (m Multi) IncAttacksDetected(attackType string) {
	for _, s := range m {
		s.IncAttacksDetected(attackType)
	}
}

func (m Multi) IncShieldDecision(decision string) {
	for _, s := range m {
		s.IncShieldDecision(decision)
	}
}

func (m Multi) ObserveAnalysisDuration(d time.Duration) {
	for _, s := range m {
		s.ObserveAnalysisDuration(d)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncSubmissions()                       {}
func (Nop) IncJobsProcessed(string)               {}
func (Nop) IncJobsFailed(string)                  {}
func (Nop) IncQuarantined(string)                 {}
func (Nop) IncBlacklisted(string)                 {}
func (Nop) IncIPBlocked()                         {}
func (Nop) IncAttacksDetected(string)             {}
func (Nop) IncShieldDecision(string)              {}
func (Nop) ObserveAnalysisDuration(time.Duration) {}
