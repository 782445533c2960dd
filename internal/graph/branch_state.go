package graph

// BranchOrigin records how a feature branch was obtained.
type BranchOrigin string

// BranchStatus is the branch lifecycle state of a repository.
type BranchStatus string

const (
	BranchOriginCreated          BranchOrigin = "created"
	BranchOriginSelectedExisting BranchOrigin = "selected-existing"
	BranchOriginKeptCurrent      BranchOrigin = "kept-current"
)

const (
	BranchStatusUnresolved        BranchStatus = "unresolved"
	BranchStatusPathChecked       BranchStatus = "path-checked"
	BranchStatusBaseBranchChecked BranchStatus = "base-branch-checked"
	BranchStatusBranchResolved    BranchStatus = "branch-resolved"
	BranchStatusFailed            BranchStatus = "failed"
)

// FeatureBranchState is the per-repository branch decision. An empty BranchName means not yet determined.
type FeatureBranchState struct {
	BranchName string
	Origin     BranchOrigin
	Status     BranchStatus
	Failure    error
}

// Resolved reports whether a branch has been settled for the repository.
func (state FeatureBranchState) Resolved() bool {
	return state.Status == BranchStatusBranchResolved && len(state.BranchName) > 0
}

// Failed reports whether the repository dropped out of the run.
func (state FeatureBranchState) Failed() bool {
	return state.Status == BranchStatusFailed
}

// Advance moves the state to status without changing the branch decision.
func (state *FeatureBranchState) Advance(status BranchStatus) {
	state.Status = status
	state.Failure = nil
}

// Resolve settles the branch.
func (state *FeatureBranchState) Resolve(branchName string, origin BranchOrigin) {
	state.BranchName = branchName
	state.Origin = origin
	state.Status = BranchStatusBranchResolved
	state.Failure = nil
}

// Fail marks the repository failed. The previously chosen name is kept so a retry can reuse it.
func (state *FeatureBranchState) Fail(failure error) {
	state.Status = BranchStatusFailed
	state.Failure = failure
}
