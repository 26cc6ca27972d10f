package workflow

// builtinKinds holds the step lists shipped with Sentinel, initialized once
// at package startup by buildBuiltinKinds.
var builtinKinds map[Kind][]StepDefinition

func init() {
	builtinKinds = buildBuiltinKinds()
}

// buildBuiltinKinds constructs the three canonical step lists. It is called
// exactly once from init().
func buildBuiltinKinds() map[Kind][]StepDefinition {
	kinds := make(map[Kind][]StepDefinition, 3)

	// ------------------------------------------------------------------
	// verification: prove a provider credential link works end to end.
	// ------------------------------------------------------------------
	kinds[KindVerification] = []StepDefinition{
		{Label: "Identity Handshake", Description: "Establishing encrypted tunnel to provider endpoint"},
		{Label: "STS Token Exchange", Description: "Acquiring and validating temporary session tokens"},
		{Label: "IAM Policy Simulation", Description: "Verifying ReadOnly and SecurityAudit permissions"},
		{Label: "GCM Key Wrapping", Description: "Sealing credentials in the vault"},
	}

	// ------------------------------------------------------------------
	// remediation: apply the automated fix for a finding.
	// ------------------------------------------------------------------
	kinds[KindRemediation] = []StepDefinition{
		{Label: "Cloud API Authentication", Description: "Validating service principal permissions"},
		{Label: "Policy Integrity Check", Description: "Verifying remediation payload safety"},
		{Label: "Remediation Deployment", Description: "Applying resource configuration update"},
		{Label: "Final Compliance Audit", Description: "Confirming resource is now secure"},
	}

	// ------------------------------------------------------------------
	// suppression: record the justification for muting a finding.
	// ------------------------------------------------------------------
	kinds[KindSuppression] = []StepDefinition{
		{Label: "Suppression Audit Record", Description: "Recording suppression justification"},
	}

	return kinds
}

// BuiltinSteps returns a copy of the built-in step list for kind, or nil if
// kind is not a built-in.
func BuiltinSteps(kind Kind) []StepDefinition {
	steps, ok := builtinKinds[kind]
	if !ok {
		return nil
	}
	return append([]StepDefinition(nil), steps...)
}

// BuiltinKinds returns the built-in kinds in a stable order.
func BuiltinKinds() []Kind {
	return []Kind{KindVerification, KindRemediation, KindSuppression}
}

// RegisterBuiltinKinds registers every built-in kind with r. A non-empty entry
// in overrides replaces the built-in step list for that kind. The kind set is
// closed, so overrides for other kinds are ignored (config validation rejects
// them before this point).
func RegisterBuiltinKinds(r *Registry, overrides map[Kind][]StepDefinition) {
	for _, k := range BuiltinKinds() {
		steps := builtinKinds[k]
		if o := overrides[k]; len(o) > 0 {
			steps = o
		}
		r.Register(k, steps)
	}
}
