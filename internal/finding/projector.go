package finding

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// Run metadata keys understood by the projector and the suppression step.
const (
	MetaReason = "reason"
	MetaNotes  = "notes"
)

// Projector applies concluded run outcomes to findings and connections.
// Finding IDs are the targets of remediation and suppression runs; provider
// names are the targets of verification runs.
type Projector struct {
	findings *Store
	conns    *Connections
	logger   *log.Logger
	now      func() time.Time
}

var _ workflow.Projector = (*Projector)(nil)

// NewProjector creates a projector over findings and conns. logger may be nil.
func NewProjector(findings *Store, conns *Connections, logger *log.Logger) *Projector {
	return &Projector{findings: findings, conns: conns, logger: logger, now: time.Now}
}

// Apply implements workflow.Projector.
func (p *Projector) Apply(targetID string, kind workflow.Kind, outcome workflow.RunStatus, run workflow.Run) {
	var err error
	switch {
	case kind == workflow.KindRemediation && outcome == workflow.RunSucceeded:
		err = p.findings.SetStatus(targetID, StatusFixed)

	case kind == workflow.KindRemediation && outcome == workflow.RunFailed:
		err = p.findings.Annotate(targetID, Annotation{
			At:      p.now(),
			Kind:    AnnotationRemediationFailed,
			RunID:   run.ID,
			Message: failureMessage(run),
		})

	case kind == workflow.KindSuppression && outcome == workflow.RunSucceeded:
		err = p.findings.SetStatus(targetID, StatusMuted)
		if err == nil {
			err = p.findings.Annotate(targetID, Annotation{
				At:      p.now(),
				Kind:    AnnotationSuppressed,
				RunID:   run.ID,
				Message: suppressionMessage(run.Metadata),
			})
		}

	case kind == workflow.KindVerification && (outcome == workflow.RunSucceeded || outcome == workflow.RunFailed):
		err = p.applyVerification(targetID, outcome, run)

	default:
		p.warn("no projection for outcome", "target", targetID, "kind", kind, "outcome", outcome, "run", run.ID)
		return
	}

	if err != nil {
		p.warn("projection skipped", "target", targetID, "kind", kind, "outcome", outcome, "run", run.ID, "error", err)
		return
	}
	if p.logger != nil {
		p.logger.Debug("projection applied", "target", targetID, "kind", kind, "outcome", outcome)
	}
}

func (p *Projector) applyVerification(targetID string, outcome workflow.RunStatus, run workflow.Run) error {
	provider, err := ParseProvider(targetID)
	if err != nil {
		return err
	}
	checked := p.now()
	conn := Connection{Provider: provider, LastChecked: &checked}
	if outcome == workflow.RunSucceeded {
		conn.Status = ConnectionConnected
	} else {
		conn.Status = ConnectionError
		conn.Detail = failureMessage(run)
	}
	p.conns.Set(conn)
	return nil
}

func (p *Projector) warn(msg string, kvs ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg, kvs...)
}

// failureMessage names the failing step and its detail.
func failureMessage(run workflow.Run) string {
	s, ok := run.FailedStep()
	if !ok {
		return "run failed"
	}
	return fmt.Sprintf("%s failed: %s", s.Label, s.ErrorDetail)
}

func suppressionMessage(md map[string]string) string {
	msg := "suppressed: " + md[MetaReason]
	if notes := md[MetaNotes]; notes != "" {
		msg += " (" + notes + ")"
	}
	return msg
}
