package analysis

import "github.com/Wikid82/phishguard/internal/models"

// Check names.
const (
	CheckInvalidURL        = "invalid_url"
	CheckBlacklisted       = "blacklisted"
	CheckTLS               = "tls"
	CheckTyposquatting     = "typosquatting"
	CheckAttackDetected    = "attack_detected"
	CheckSuspiciousForm    = "suspicious_form"
	CheckAutoSubmit        = "auto_submit"
	CheckMultipleRedirects = "multiple_redirects"
	CheckTitleLogin        = "title_login"
	CheckObfuscatedScripts = "obfuscated_scripts"
	CheckRenderError       = "render_error"
	CheckLowTrust          = "low_trust"
)

// Weights added to the score when a check fails.
var Weights = map[string]int{
	CheckInvalidURL:        100,
	CheckBlacklisted:       100,
	CheckTLS:               30,
	CheckTyposquatting:     40,
	CheckAttackDetected:    100,
	CheckSuspiciousForm:    40,
	CheckAutoSubmit:        10,
	CheckMultipleRedirects: 15,
	CheckTitleLogin:        5,
	CheckObfuscatedScripts: 10,
	CheckRenderError:       20,
}

// low_trust weight depends on the trust level.
const (
	lowTrustUntrusted  = 20
	lowTrustSuspicious = 10
)

const (
	highThreshold   = 50
	mediumThreshold = 20
	maxTips         = 3
)

// Level maps a score to alto, médio or baixo.
func Level(score int) string {
	switch {
	case score >= highThreshold:
		return models.LevelHigh
	case score >= mediumThreshold:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

var tipOrder = []struct {
	check string
	tip   string
}{
	{CheckSuspiciousForm, "⚠️ A página solicita dados sensíveis (senha/CPF). Nunca insira essas informações em links recebidos por email, SMS ou WhatsApp."},
	{CheckTLS, "🔒 O site não possui certificado HTTPS válido. Sites legítimos sempre usam HTTPS."},
	{CheckTyposquatting, "🔤 O domínio parece similar a um site oficial, mas com pequenas diferenças. Sempre verifique o endereço completo antes de inserir dados."},
	{CheckAutoSubmit, "⚡ O site tenta enviar formulários automaticamente. Isso é um sinal comum de golpes."},
	{CheckMultipleRedirects, "🔄 Múltiplos redirecionamentos podem esconder o destino real do link."},
	{CheckBlacklisted, "⛔ Este endereço já foi identificado como perigoso e está bloqueado."},
	{CheckAttackDetected, "🛡️ A página contém código de ataque. Não interaja com ela."},
}

// FallbackTip is returned when no check produced a tip.
const FallbackTip = "✅ Parece seguro, mas sempre confira o domínio e evite clicar em links desconhecidos."

// Tips derives at most three tips from the failed checks, in a fixed order.
func Tips(checks []models.Check) []string {
	failed := make(map[string]bool, len(checks))
	for _, c := range checks {
		if !c.OK {
			failed[c.Name] = true
		}
	}
	var tips []string
	for _, t := range tipOrder {
		if failed[t.check] {
			tips = append(tips, t.tip)
			if len(tips) == maxTips {
				break
			}
		}
	}
	if len(tips) == 0 {
		return []string{FallbackTip}
	}
	return tips
}
