// Package finding holds the security findings and provider connections that
// workflow runs act upon, and projects run outcomes back onto them.
package finding

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies a cloud provider.
type Provider string

const (
	ProviderAWS   Provider = "AWS"
	ProviderAzure Provider = "Azure"
	ProviderGCP   Provider = "GCP"
)

// Providers returns every supported provider in display order.
func Providers() []Provider {
	return []Provider{ProviderAWS, ProviderAzure, ProviderGCP}
}

// ParseProvider resolves a case-insensitive provider name.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers() {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("finding: unknown provider %q (want one of aws, azure, gcp)", s)
}

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Rank orders severities, most severe first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Status is the lifecycle state of a finding.
type Status string

const (
	StatusOpen  Status = "Open"
	StatusFixed Status = "Fixed"
	StatusMuted Status = "Muted"
)

// Annotation kinds.
const (
	AnnotationRemediationFailed = "remediation_failed"
	AnnotationSuppressed        = "suppressed"
	AnnotationReopened          = "reopened"
)

// Suppression reasons offered to users. Any non-empty reason is accepted; these
// are the canonical choices.
var SuppressionReasons = []string{"False Positive", "Risk Accepted", "Compensating Control"}

// Annotation is an audit note attached to a finding.
type Annotation struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	RunID   string    `json:"run_id,omitempty"`
	Message string    `json:"message"`
}

// Finding is a detected misconfiguration.
type Finding struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Resource    string       `json:"resource"`
	Provider    Provider     `json:"provider"`
	Severity    Severity     `json:"severity"`
	Status      Status       `json:"status"`
	Frameworks  []string     `json:"frameworks"`
	Impact      string       `json:"impact"`
	Fix         string       `json:"fix"`
	DetectedAt  time.Time    `json:"detected_at"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

func (f Finding) clone() Finding {
	f.Frameworks = append([]string(nil), f.Frameworks...)
	f.Annotations = append([]Annotation(nil), f.Annotations...)
	return f
}

// ConnectionStatus is the state of a provider credential link.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionError        ConnectionStatus = "error"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// Connection records the last verification result for a provider.
type Connection struct {
	Provider    Provider         `json:"provider"`
	Status      ConnectionStatus `json:"status"`
	LastChecked *time.Time       `json:"last_checked,omitempty"`
	Detail      string           `json:"detail,omitempty"`
}
