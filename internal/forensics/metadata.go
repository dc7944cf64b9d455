// Package forensics turns request metadata into attacker profiles and
// incident reports. Everything here is pure except Enrich.
package forensics

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// IPInfo describes the client address of an attack.
type IPInfo struct {
	IP         string `json:"ip"`
	Valid      bool   `json:"valid"`
	IsPrivate  bool   `json:"is_private"`
	IsLoopback bool   `json:"is_loopback"`
	IPType     string `json:"ip_type,omitempty"`
	Location   string `json:"location,omitempty"`
	ISP        string `json:"isp,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	IsVPN      bool   `json:"is_vpn"`
}

// Metadata is what can be learned about an attacker from the request alone.
type Metadata struct {
	ClientIP       string    `json:"client_ip"`
	Timestamp      time.Time `json:"timestamp"`
	UserAgent      string    `json:"user_agent"`
	Referer        string    `json:"referer,omitempty"`
	AcceptLanguage string    `json:"accept_language,omitempty"`
	AcceptEncoding string    `json:"accept_encoding,omitempty"`
	Connection     string    `json:"connection,omitempty"`
	XForwardedFor  string    `json:"x_forwarded_for,omitempty"`
	XRealIP        string    `json:"x_real_ip,omitempty"`
	IPInfo         IPInfo    `json:"ip_info"`
	IsProxied      bool      `json:"is_proxied"`
	OriginalIP     string    `json:"original_ip,omitempty"`
	Browser        string    `json:"browser"`
	OS             string    `json:"os"`
	IsBot          bool      `json:"is_bot"`
}

// VPNRanges lists address ranges reported as VPN egress. Empty by default; a
// real deployment loads a provider feed here.
var VPNRanges []netip.Prefix

// ExtractMetadata derives attacker metadata from request headers and the
// client IP.
func ExtractMetadata(headers http.Header, clientIP string, now time.Time) Metadata {
	ua := headers.Get("User-Agent")
	if ua == "" {
		ua = "Unknown"
	}
	m := Metadata{
		ClientIP:       clientIP,
		Timestamp:      now,
		UserAgent:      ua,
		Referer:        headers.Get("Referer"),
		AcceptLanguage: headers.Get("Accept-Language"),
		AcceptEncoding: headers.Get("Accept-Encoding"),
		Connection:     headers.Get("Connection"),
		XForwardedFor:  headers.Get("X-Forwarded-For"),
		XRealIP:        headers.Get("X-Real-IP"),
		IPInfo:         ClassifyIP(clientIP),
	}

	if m.XForwardedFor != "" {
		m.IsProxied = true
		m.OriginalIP = strings.TrimSpace(strings.Split(m.XForwardedFor, ",")[0])
	}

	m.Browser, m.OS, m.IsBot = ParseUserAgent(ua)
	return m
}

// ClassifyIP fills the address-derived fields of IPInfo.
func ClassifyIP(ip string) IPInfo {
	info := IPInfo{IP: ip}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return info
	}
	addr = addr.Unmap()
	info.Valid = true
	info.IsLoopback = addr.IsLoopback()
	info.IsPrivate = addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
	if addr.Is4() {
		info.IPType = "IPv4"
	} else {
		info.IPType = "IPv6"
	}
	if info.IsPrivate {
		info.Location = "Private Network"
		info.ISP = "Local Network"
		return info
	}
	for _, p := range VPNRanges {
		if p.Contains(addr) {
			info.IsVPN = true
			break
		}
	}
	return info
}

// ParseUserAgent infers browser, operating system and bot status.
func ParseUserAgent(ua string) (browser, os string, isBot bool) {
	l := strings.ToLower(ua)
	browser, os = "Unknown", "Unknown"

	isBot = strings.Contains(l, "bot") || strings.Contains(l, "crawler") || strings.Contains(l, "spider")

	switch {
	case strings.Contains(l, "edg"):
		browser = "Edge"
	case strings.Contains(l, "chrome"):
		browser = "Chrome"
	case strings.Contains(l, "firefox"):
		browser = "Firefox"
	case strings.Contains(l, "safari"):
		browser = "Safari"
	}

	switch {
	case strings.Contains(l, "windows"):
		os = "Windows"
	case strings.Contains(l, "android"):
		os = "Android"
	case strings.Contains(l, "iphone"), strings.Contains(l, "ipad"), strings.Contains(l, "ios"):
		os = "iOS"
	case strings.Contains(l, "mac"), strings.Contains(l, "darwin"):
		os = "macOS"
	case strings.Contains(l, "linux"):
		os = "Linux"
	}
	return browser, os, isBot
}

// ReverseResolver maps an address to a hostname.
type ReverseResolver interface {
	LookupPTR(ctx context.Context, ip string) (string, error)
}

// Enrich adds the reverse DNS name of public addresses. Lookup failures leave
// the hostname empty.
func Enrich(ctx context.Context, r ReverseResolver, m *Metadata) {
	if r == nil || m == nil || !m.IPInfo.Valid || m.IPInfo.IsPrivate {
		return
	}
	if host, err := r.LookupPTR(ctx, m.ClientIP); err == nil {
		m.IPInfo.Hostname = host
	}
}
