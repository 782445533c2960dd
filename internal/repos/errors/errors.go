// Package repoerrors defines the failure taxonomy shared by the link, switch and remote workflows.
package repoerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindPathNotFound          Kind = "path_not_found"
	KindBaseBranchMissing     Kind = "base_branch_missing"
	KindDuplicateBranchName   Kind = "duplicate_branch_name"
	KindBranchCreation        Kind = "branch_creation"
	KindBranchSelection       Kind = "branch_selection"
	KindBranchUpdate          Kind = "branch_update"
	KindSubmoduleUpdate       Kind = "submodule_update"
	KindStaging               Kind = "staging"
	KindCommit                Kind = "commit"
	KindPush                  Kind = "push"
	KindPullRequestCreation   Kind = "pull_request_creation"
	KindProviderConfiguration Kind = "provider_configuration"
	KindRemoteUpdate          Kind = "remote_update"
	KindConfiguration         Kind = "configuration"
)

const (
	operationErrorTemplateConstant        = "%s: %s"
	operationErrorWithCauseTemplate       = "%s: %s: %v"
	pathNotFoundMessageConstant           = "repository path not found"
	baseBranchMissingMessageConstant      = "base branch missing"
	duplicateBranchNameMessageConstant    = "branch already exists"
	branchCreationMessageConstant         = "branch creation failed"
	branchSelectionMessageConstant        = "branch selection failed"
	branchUpdateMessageConstant           = "feature branch update failed"
	submoduleUpdateMessageConstant        = "submodule update failed"
	stagingMessageConstant                = "staging failed"
	commitMessageConstant                 = "commit failed"
	pushMessageConstant                   = "push failed"
	pullRequestCreationMessageConstant    = "pull request creation failed"
	providerConfigurationMessageConstant  = "pull request provider misconfigured"
	remoteUpdateMessageConstant           = "remote update failed"
	configurationMessageConstant          = "invalid configuration"
)

const unknownOperationFailureMessageConstant = "operation failed"

var (
	ErrPathNotFound          = errors.New(pathNotFoundMessageConstant)
	ErrBaseBranchMissing     = errors.New(baseBranchMissingMessageConstant)
	ErrDuplicateBranchName   = errors.New(duplicateBranchNameMessageConstant)
	ErrBranchCreation        = errors.New(branchCreationMessageConstant)
	ErrBranchSelection       = errors.New(branchSelectionMessageConstant)
	ErrBranchUpdate          = errors.New(branchUpdateMessageConstant)
	ErrSubmoduleUpdate       = errors.New(submoduleUpdateMessageConstant)
	ErrStaging               = errors.New(stagingMessageConstant)
	ErrCommit                = errors.New(commitMessageConstant)
	ErrPush                  = errors.New(pushMessageConstant)
	ErrPullRequestCreation   = errors.New(pullRequestCreationMessageConstant)
	ErrProviderConfiguration = errors.New(providerConfigurationMessageConstant)
	ErrRemoteUpdate          = errors.New(remoteUpdateMessageConstant)
	ErrConfiguration         = errors.New(configurationMessageConstant)
	errUnknownOperation      = errors.New(unknownOperationFailureMessageConstant)
)

var sentinelByKind = map[Kind]error{
	KindPathNotFound:          ErrPathNotFound,
	KindBaseBranchMissing:     ErrBaseBranchMissing,
	KindDuplicateBranchName:   ErrDuplicateBranchName,
	KindBranchCreation:        ErrBranchCreation,
	KindBranchSelection:       ErrBranchSelection,
	KindBranchUpdate:          ErrBranchUpdate,
	KindSubmoduleUpdate:       ErrSubmoduleUpdate,
	KindStaging:               ErrStaging,
	KindCommit:                ErrCommit,
	KindPush:                  ErrPush,
	KindPullRequestCreation:   ErrPullRequestCreation,
	KindProviderConfiguration: ErrProviderConfiguration,
	KindRemoteUpdate:          ErrRemoteUpdate,
	KindConfiguration:         ErrConfiguration,
}

// OperationError reports a failed step against a named subject such as a repository path or submodule.
// It matches both its kind sentinel and its cause through errors.Is.
type OperationError struct {
	Kind    Kind
	Subject string
	Cause   error
}

// New constructs an OperationError.
func New(kind Kind, subject string, cause error) OperationError {
	return OperationError{Kind: kind, Subject: subject, Cause: cause}
}

// Error renders the failure including its cause.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorTemplateConstant, operationError.Subject, operationError.sentinel())
	}
	return fmt.Sprintf(operationErrorWithCauseTemplate, operationError.Subject, operationError.sentinel(), operationError.Cause)
}

// Message renders a single-line summary without the cause chain.
func (operationError OperationError) Message() string {
	return fmt.Sprintf(operationErrorTemplateConstant, strings.TrimSpace(operationError.Subject), operationError.sentinel())
}

// Unwrap exposes the kind sentinel and the cause.
func (operationError OperationError) Unwrap() []error {
	unwrapped := []error{operationError.sentinel()}
	if operationError.Cause != nil {
		unwrapped = append(unwrapped, operationError.Cause)
	}
	return unwrapped
}

func (operationError OperationError) sentinel() error {
	sentinel, known := sentinelByKind[operationError.Kind]
	if !known {
		return errUnknownOperation
	}
	return sentinel
}

// KindOf extracts the kind of the first OperationError in the chain.
func KindOf(err error) (Kind, bool) {
	var operationError OperationError
	if errors.As(err, &operationError) {
		return operationError.Kind, true
	}
	return "", false
}

// IsFatal reports whether the error must abort the run instead of being recorded against a project.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
