package shared

// ConfirmationPolicy specifies how the run-level continue confirmation is handled.
type ConfirmationPolicy int

const (
	// ConfirmationPrompt indicates the user must confirm before mutating repositories.
	ConfirmationPrompt ConfirmationPolicy = iota
	// ConfirmationAssumeYes indicates the run continues without prompting.
	ConfirmationAssumeYes
)

// ConfirmationPolicyFromBool converts an assume-yes flag into a policy.
func ConfirmationPolicyFromBool(assumeYes bool) ConfirmationPolicy {
	if assumeYes {
		return ConfirmationAssumeYes
	}
	return ConfirmationPrompt
}

// ShouldAssumeYes reports whether prompting can be skipped.
func (policy ConfirmationPolicy) ShouldAssumeYes() bool {
	return policy == ConfirmationAssumeYes
}
