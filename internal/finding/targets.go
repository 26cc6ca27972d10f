package finding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// ErrNotOpen is returned when a remediation or suppression names a finding
// that is already Fixed or Muted.
var ErrNotOpen = errors.New("finding is not open")

// ErrNoMatch is returned when a pattern matches no open finding.
var ErrNoMatch = errors.New("no open finding matches")

// ResolveTargets turns user arguments into engine target IDs for kind.
//
// Verification arguments are provider names, matched case-insensitively and
// returned in canonical form. Remediation and suppression arguments are
// finding IDs or doublestar patterns; patterns expand to the open findings
// they match, while an explicit ID must name an open finding. Duplicates are
// dropped, first occurrence wins.
func ResolveTargets(store *Store, kind workflow.Kind, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("finding: no targets given")
	}
	seen := make(map[string]bool, len(args))
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, arg := range args {
		if kind == workflow.KindVerification {
			p, err := ParseProvider(arg)
			if err != nil {
				return nil, err
			}
			add(string(p))
			continue
		}

		if !isPattern(arg) {
			f, err := store.Get(arg)
			if err != nil {
				return nil, err
			}
			if f.Status != StatusOpen {
				return nil, fmt.Errorf("finding: %s is %s: %w", f.ID, f.Status, ErrNotOpen)
			}
			add(f.ID)
			continue
		}

		matches, err := store.Match(arg)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, f := range matches {
			if f.Status == StatusOpen {
				add(f.ID)
				n++
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("finding: %q: %w", arg, ErrNoMatch)
		}
	}
	return out, nil
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
