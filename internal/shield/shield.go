// Package shield inspects incoming API requests for attack payloads and
// rejects clients on the IP blacklist.
package shield

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/forensics"
	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/metrics"
	"github.com/Wikid82/phishguard/internal/util"
)

const (
	ModeDisabled = "disabled"
	ModeMonitor  = "monitor"
	ModeBlock    = "block"

	enrichTimeout = 500 * time.Millisecond
)

// Engine is the part of the decision engine the shield reports to.
type Engine interface {
	IsBlocked(ip string) (bool, error)
	RecordAttack(ac forensics.AttackContext) (forensics.Report, error)
}

// Shield is the request filter in front of the API.
type Shield struct {
	mode     string
	detector *detector.Detector
	engine   Engine
	metrics  metrics.Sink
	resolver forensics.ReverseResolver
	now      func() time.Time
}

// New creates a Shield. resolver may be nil, in which case attacker
// metadata carries no reverse DNS name.
func New(cfg config.SecurityConfig, det *detector.Detector, engine Engine, sink metrics.Sink, resolver forensics.ReverseResolver) *Shield {
	if sink == nil {
		sink = &metrics.Atomic{}
	}
	return &Shield{
		mode:     cfg.ShieldMode,
		detector: det,
		engine:   engine,
		metrics:  sink,
		resolver: resolver,
		now:      time.Now,
	}
}

// IsEnabled reports whether requests are inspected.
func (s *Shield) IsEnabled() bool {
	return s.mode == ModeMonitor || s.mode == ModeBlock
}

// Middleware returns a Gin middleware that rejects blacklisted clients and
// requests carrying attack payloads. In monitor mode both are logged and
// recorded but let through.
func (s *Shield) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !s.IsEnabled() {
			ctx.Next()
			return
		}

		clientIP := ctx.ClientIP()
		fields := logrus.Fields{
			"source": "shield",
			"mode":   s.mode,
			"ip":     clientIP,
			"path":   util.SanitizeForLog(ctx.Request.URL.Path),
		}

		blocked, err := s.engine.IsBlocked(clientIP)
		if err != nil {
			logger.WithFields(fields).WithError(err).Warn("blacklist lookup failed")
		}
		if blocked {
			if s.mode == ModeBlock {
				s.metrics.IncShieldDecision("block")
				logger.WithFields(fields).WithField("decision", "block").Warn("blacklisted client rejected")
				ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Acesso bloqueado"})
				return
			}
			s.metrics.IncShieldDecision("monitor")
			logger.WithFields(fields).WithField("decision", "monitor").Info("blacklisted client monitored")
		}

		target := requestTarget(ctx.Request)
		analysis := s.detector.AnalyzeURL(target, "")
		if !analysis.IsMalicious {
			s.metrics.IncShieldDecision("allow")
			ctx.Next()
			return
		}

		meta := forensics.ExtractMetadata(ctx.Request.Header, clientIP, s.now())
		if s.resolver != nil {
			ectx, cancel := context.WithTimeout(ctx.Request.Context(), enrichTimeout)
			forensics.Enrich(ectx, s.resolver, &meta)
			cancel()
		}

		report, err := s.engine.RecordAttack(forensics.AttackContext{
			ThreatType:     string(analysis.Threats[0].Category),
			RiskLevel:      string(analysis.RiskLevel),
			TargetURL:      ctx.Request.URL.Path,
			Payload:        target,
			Metadata:       meta,
			ThreatAnalysis: analysis,
			Time:           meta.Timestamp,
		})
		if err != nil {
			logger.WithFields(fields).WithError(err).Error("failed to record attack")
		}

		fields["threat_type"] = analysis.Threats[0].Category
		fields["risk_level"] = analysis.RiskLevel
		fields["report_id"] = report.ReportID

		if s.mode == ModeMonitor {
			s.metrics.IncShieldDecision("monitor")
			logger.WithFields(fields).WithField("decision", "monitor").Info("attack payload monitored")
			ctx.Next()
			return
		}

		s.metrics.IncShieldDecision("block")
		logger.WithFields(fields).WithField("decision", "block").Warn("attack payload blocked")
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Requisição bloqueada: padrão de ataque detectado",
			"report_id": report.ReportID,
		})
	}
}

// requestTarget returns the decoded path and query of r. Undecodable input
// is inspected as received.
func requestTarget(r *http.Request) string {
	raw := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
