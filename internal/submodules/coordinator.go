// Package submodules brings shared submodules up to date exactly once per run and stages the resulting
// pointer changes in their parent projects.
package submodules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/metrics"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	decisionProviderMissingMessageConstant  = "decision provider not configured"
	headRevisionConstant                    = "HEAD"
	defaultParallelismConstant              = 4
	projectListSeparatorConstant            = ", "
	pushSubmodulePromptTemplateConstant     = "Submodule %s is %d commit(s) ahead of %s/%s. Push it?"
	sharedUpdateFailedMessageConstant       = "Submodule update failed; staging is disabled for every project referencing it"
	submoduleSynchronizedMessageConstant    = "Submodule synchronized"
	submoduleUpdateCancelledMessageConstant = "Submodule update cancelled before it started"
	submodulePushedMessageConstant          = "Submodule pushed"
	submodulePushFailedMessageConstant      = "Submodule push failed"
	submoduleAheadCheckFailedMessage        = "Could not compare submodule with its remote"
	referenceAlignmentFailedMessageConstant = "Submodule reference could not be aligned with the synchronized commit"
	logFieldSubmoduleConstant               = "submodule"
	logFieldProjectsConstant                = "projects"
	logFieldProjectConstant                 = "project"
	logFieldCommitConstant                  = "commit"
	logFieldAheadConstant                   = "ahead"
)

var (
	// ErrRepositoryManagerNotConfigured indicates a missing git collaborator.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrDecisionProviderNotConfigured indicates a missing decision provider.
	ErrDecisionProviderNotConfigured = errors.New(decisionProviderMissingMessageConstant)
)

// Dependencies enumerates the collaborators shared by the Coordinator and the Stager.
type Dependencies struct {
	RepositoryManager shared.GitRepositoryManager
	Decisions         decisions.Provider
	Logger            *zap.Logger
	Metrics           *metrics.Recorder
}

// SyncOutcome is the result of the single update of one distinct submodule.
type SyncOutcome struct {
	Name        string
	Primary     *graph.SubmoduleRef
	Commit      string
	Ahead       int
	Pushed      bool
	PushFailure error
	Failure     error
}

// SyncReport collects the outcome of every distinct submodule and every reference aligned to it.
type SyncReport struct {
	names             []string
	outcomes          map[string]SyncOutcome
	referenceFailures map[*graph.SubmoduleRef]error
}

// Names lists the synchronized submodule names in first-reference order.
func (report SyncReport) Names() []string {
	return append([]string{}, report.names...)
}

// Outcome returns the outcome for a submodule name.
func (report SyncReport) Outcome(name string) (SyncOutcome, bool) {
	outcome, found := report.outcomes[name]
	return outcome, found
}

// ReferenceFailure returns why a reference could not be prepared, or nil. A failed shared update fails every reference.
func (report SyncReport) ReferenceFailure(reference *graph.SubmoduleRef) error {
	if outcome, found := report.outcomes[reference.Name]; found && outcome.Failure != nil {
		return outcome.Failure
	}
	return report.referenceFailures[reference]
}

// Coordinator performs one checkout and pull per distinct submodule name.
type Coordinator struct {
	repositoryManager shared.GitRepositoryManager
	decisionProvider  decisions.Provider
	logger            *zap.Logger
	metrics           *metrics.Recorder
	parallelism       int
}

// NewCoordinator constructs a Coordinator. Parallelism below one uses the default.
func NewCoordinator(dependencies Dependencies, parallelism int) (*Coordinator, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.Decisions == nil {
		return nil, ErrDecisionProviderNotConfigured
	}
	if parallelism < 1 {
		parallelism = defaultParallelismConstant
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		repositoryManager: dependencies.RepositoryManager,
		decisionProvider:  dependencies.Decisions,
		logger:            logger,
		metrics:           dependencies.Metrics,
		parallelism:       parallelism,
	}, nil
}

// Synchronize updates each distinct submodule once through its first reference, offers a single push when
// the update left it ahead of its remote, and fast-forwards every other reference to the same commit.
// Distinct submodules are pulled concurrently; the call returns only after all of them finished.
func (coordinator *Coordinator) Synchronize(executionContext context.Context, references []*graph.SubmoduleRef) SyncReport {
	names, grouped := graph.GroupByName(references)
	report := SyncReport{
		names:             names,
		outcomes:          make(map[string]SyncOutcome, len(names)),
		referenceFailures: map[*graph.SubmoduleRef]error{},
	}

	var waitGroup sync.WaitGroup
	var outcomesMutex sync.Mutex
	semaphore := make(chan struct{}, coordinator.parallelism)
	for _, name := range names {
		group := grouped[name]
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			var outcome SyncOutcome
			select {
			case semaphore <- struct{}{}:
				if executionContext.Err() != nil {
					outcome = coordinator.cancelled(executionContext, group)
				} else {
					outcome = coordinator.pull(executionContext, group)
				}
				<-semaphore
			case <-executionContext.Done():
				outcome = coordinator.cancelled(executionContext, group)
			}
			outcomesMutex.Lock()
			report.outcomes[outcome.Name] = outcome
			outcomesMutex.Unlock()
		}()
	}
	waitGroup.Wait()

	for _, name := range names {
		outcome := report.outcomes[name]
		if outcome.Failure != nil {
			continue
		}
		outcome = coordinator.offerPush(executionContext, outcome)
		report.outcomes[name] = outcome
		for _, reference := range grouped[name][1:] {
			if alignError := coordinator.align(executionContext, outcome, reference); alignError != nil {
				report.referenceFailures[reference] = alignError
			}
		}
	}
	return report
}

func (coordinator *Coordinator) pull(executionContext context.Context, group []*graph.SubmoduleRef) SyncOutcome {
	primary := group[0]
	outcome := SyncOutcome{Name: primary.Name, Primary: primary}

	commit, updateError := updateToBase(executionContext, coordinator.repositoryManager, primary)
	coordinator.metrics.Record(metrics.OperationSubmodulePull, updateError)
	if updateError != nil {
		outcome.Failure = repoerrors.New(repoerrors.KindSubmoduleUpdate, primary.Name, updateError)
		coordinator.logger.Error(sharedUpdateFailedMessageConstant,
			zap.String(logFieldSubmoduleConstant, primary.Name),
			zap.String(logFieldProjectsConstant, strings.Join(referencingProjects(group), projectListSeparatorConstant)),
			zap.Error(updateError),
		)
		return outcome
	}

	outcome.Commit = commit
	coordinator.logger.Info(submoduleSynchronizedMessageConstant,
		zap.String(logFieldSubmoduleConstant, primary.Name),
		zap.String(logFieldCommitConstant, commit),
		zap.String(logFieldProjectsConstant, strings.Join(referencingProjects(group), projectListSeparatorConstant)),
	)
	return outcome
}

func (coordinator *Coordinator) cancelled(executionContext context.Context, group []*graph.SubmoduleRef) SyncOutcome {
	primary := group[0]
	coordinator.logger.Warn(submoduleUpdateCancelledMessageConstant,
		zap.String(logFieldSubmoduleConstant, primary.Name),
		zap.String(logFieldProjectsConstant, strings.Join(referencingProjects(group), projectListSeparatorConstant)),
	)
	return SyncOutcome{
		Name:    primary.Name,
		Primary: primary,
		Failure: repoerrors.New(repoerrors.KindSubmoduleUpdate, primary.Name, executionContext.Err()),
	}
}

func (coordinator *Coordinator) offerPush(executionContext context.Context, outcome SyncOutcome) SyncOutcome {
	primary := outcome.Primary
	ahead, aheadError := coordinator.repositoryManager.CountCommitsAhead(executionContext, primary.Path, primary.RemoteName, primary.BaseBranch)
	if aheadError != nil {
		coordinator.logger.Warn(submoduleAheadCheckFailedMessage, zap.String(logFieldSubmoduleConstant, primary.Name), zap.Error(aheadError))
		return outcome
	}
	outcome.Ahead = ahead
	if ahead == 0 {
		return outcome
	}

	confirmed, decisionError := coordinator.decisionProvider.Confirm(executionContext, decisions.ConfirmRequest{
		Key:     decisions.KeyPushSubmodule,
		Subject: primary.Name,
		Prompt:  fmt.Sprintf(pushSubmodulePromptTemplateConstant, primary.Name, ahead, primary.RemoteName, primary.BaseBranch),
	})
	if decisionError != nil || !confirmed {
		return outcome
	}

	pushError := coordinator.repositoryManager.Push(executionContext, primary.Path, primary.RemoteName, primary.BaseBranch)
	coordinator.metrics.Record(metrics.OperationSubmodulePush, pushError)
	if pushError != nil {
		outcome.PushFailure = repoerrors.New(repoerrors.KindPush, primary.Name, pushError)
		coordinator.logger.Warn(submodulePushFailedMessageConstant, zap.String(logFieldSubmoduleConstant, primary.Name), zap.Error(pushError))
		return outcome
	}
	outcome.Pushed = true
	coordinator.logger.Info(submodulePushedMessageConstant, zap.String(logFieldSubmoduleConstant, primary.Name), zap.Int(logFieldAheadConstant, ahead))
	return outcome
}

// align fast-forwards another reference to the synchronized commit. Commits that never reached the remote
// are fetched straight from the primary working tree.
func (coordinator *Coordinator) align(executionContext context.Context, outcome SyncOutcome, reference *graph.SubmoduleRef) error {
	if reference.Path == outcome.Primary.Path {
		return nil
	}
	source := reference.RemoteName
	if outcome.Ahead > 0 && !outcome.Pushed {
		source = outcome.Primary.Path
	}

	alignError := coordinator.fastForward(executionContext, reference, source, outcome.Commit)
	if alignError != nil {
		coordinator.logger.Warn(referenceAlignmentFailedMessageConstant,
			zap.String(logFieldSubmoduleConstant, reference.Name),
			zap.String(logFieldProjectConstant, projectName(reference)),
			zap.Error(alignError),
		)
		return repoerrors.New(repoerrors.KindSubmoduleUpdate, reference.Path, alignError)
	}
	return nil
}

func (coordinator *Coordinator) fastForward(executionContext context.Context, reference *graph.SubmoduleRef, source string, commit string) error {
	if fetchError := coordinator.repositoryManager.Fetch(executionContext, reference.Path, source); fetchError != nil {
		return fetchError
	}
	if checkoutError := coordinator.repositoryManager.Checkout(executionContext, reference.Path, reference.BaseBranch); checkoutError != nil {
		return checkoutError
	}
	return coordinator.repositoryManager.MergeFastForward(executionContext, reference.Path, commit)
}

func updateToBase(executionContext context.Context, repositoryManager shared.GitRepositoryManager, reference *graph.SubmoduleRef) (string, error) {
	if checkoutError := repositoryManager.Checkout(executionContext, reference.Path, reference.BaseBranch); checkoutError != nil {
		return "", checkoutError
	}
	if pullError := repositoryManager.Pull(executionContext, reference.Path, reference.RemoteName, reference.BaseBranch); pullError != nil {
		return "", pullError
	}
	return repositoryManager.ResolveRevision(executionContext, reference.Path, headRevisionConstant)
}

func referencingProjects(group []*graph.SubmoduleRef) []string {
	return lo.Map(group, func(reference *graph.SubmoduleRef, _ int) string {
		return projectName(reference)
	})
}

func projectName(reference *graph.SubmoduleRef) string {
	if reference.Project == nil {
		return ""
	}
	return reference.Project.Name
}
