package submodules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/graph"
	"github.com/temirov/gitcaptain/internal/metrics"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	// CommitMessageHeaderConstant opens every submodule link commit message.
	CommitMessageHeaderConstant     = "feat(submodules): update links"
	commitMessageSectionTemplate    = "\n%s:\n"
	commitMessageEntryTemplate      = "- %s\n"
	stageSummaryTemplateConstant    = "%d of %d submodules staged"
	noNewCommitsMessageConstant     = "No new commits found in submodule"
	submoduleSkippedMessageConstant = "Submodule skipped"
	submoduleStagedMessageConstant  = "Submodule staged"
	stagingFinishedMessageConstant  = "Submodule staging finished"
	logFieldSummaryConstant         = "summary"
	logFieldPreviousCommitConstant  = "previous_commit"
	logFieldCurrentCommitConstant   = "current_commit"
	logFieldCommitCountConstant     = "commits"
)

// Delta is the commit range between the pointer a project records for a submodule and the submodule's new HEAD.
type Delta struct {
	Name           string
	RelativePath   string
	PreviousCommit string
	CurrentCommit  string
	CommitLog      []string
}

// Empty reports whether the delta has nothing to stage.
func (delta Delta) Empty() bool {
	return delta.PreviousCommit == delta.CurrentCommit || len(delta.CommitLog) == 0
}

// SkippedSubmodule records a submodule that contributed nothing. Reason is nil when it simply had no new commits.
type SkippedSubmodule struct {
	Name   string
	Reason error
}

// StageResult describes the staging of one project.
type StageResult struct {
	Project  string
	Selected int
	Staged   []Delta
	Skipped  []SkippedSubmodule
	Message  string
}

// StagedCount is the number of submodules staged in the parent index.
func (result StageResult) StagedCount() int {
	return len(result.Staged)
}

// TotalCommits sums the commits of every staged delta.
func (result StageResult) TotalCommits() int {
	total := 0
	for _, delta := range result.Staged {
		total += len(delta.CommitLog)
	}
	return total
}

// Summary renders "X of Y submodules staged".
func (result StageResult) Summary() string {
	return fmt.Sprintf(stageSummaryTemplateConstant, result.StagedCount(), result.Selected)
}

// Stager computes submodule deltas for a project and stages the non-empty ones.
type Stager struct {
	repositoryManager shared.GitRepositoryManager
	logger            *zap.Logger
	metrics           *metrics.Recorder
}

// NewStager constructs a Stager. The decision provider is not used.
func NewStager(dependencies Dependencies) (*Stager, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{repositoryManager: dependencies.RepositoryManager, logger: logger, metrics: dependencies.Metrics}, nil
}

// Stage walks the project's selected submodules in declaration order. Submodules present in the report are
// not pulled again; others are brought up to their base branch first. A failing submodule is skipped and the
// rest still contribute to the single commit message of the project.
func (stager *Stager) Stage(executionContext context.Context, project *graph.ProjectNode, report SyncReport) StageResult {
	result := StageResult{Project: project.Name, Selected: len(project.SelectedSubmodules)}
	var message strings.Builder
	message.WriteString(CommitMessageHeaderConstant)
	message.WriteString("\n")

	for _, reference := range project.SelectedSubmodules {
		delta, stageError := stager.stageSubmodule(executionContext, project, reference, report)
		if stageError != nil || delta.Empty() {
			result.Skipped = append(result.Skipped, SkippedSubmodule{Name: reference.Name, Reason: stageError})
			stager.logSkip(project, reference, stageError)
			continue
		}

		fmt.Fprintf(&message, commitMessageSectionTemplate, reference.Name)
		for _, title := range delta.CommitLog {
			fmt.Fprintf(&message, commitMessageEntryTemplate, title)
		}
		result.Staged = append(result.Staged, delta)
		stager.logger.Info(submoduleStagedMessageConstant,
			zap.String(logFieldProjectConstant, project.Name),
			zap.String(logFieldSubmoduleConstant, reference.Name),
			zap.String(logFieldPreviousCommitConstant, delta.PreviousCommit),
			zap.String(logFieldCurrentCommitConstant, delta.CurrentCommit),
			zap.Int(logFieldCommitCountConstant, len(delta.CommitLog)),
		)
	}

	if result.StagedCount() > 0 {
		result.Message = message.String()
	}
	stager.logger.Info(stagingFinishedMessageConstant,
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldSummaryConstant, result.Summary()),
	)
	return result
}

func (stager *Stager) stageSubmodule(executionContext context.Context, project *graph.ProjectNode, reference *graph.SubmoduleRef, report SyncReport) (Delta, error) {
	delta := Delta{Name: reference.Name, RelativePath: reference.RelativePath}

	if _, synchronized := report.Outcome(reference.Name); synchronized {
		if referenceError := report.ReferenceFailure(reference); referenceError != nil {
			return delta, referenceError
		}
	} else {
		_, updateError := updateToBase(executionContext, stager.repositoryManager, reference)
		stager.metrics.Record(metrics.OperationSubmodulePull, updateError)
		if updateError != nil {
			return delta, repoerrors.New(repoerrors.KindSubmoduleUpdate, reference.Name, updateError)
		}
	}

	previousCommit, pinnedError := stager.repositoryManager.PinnedCommit(executionContext, project.Path, reference.RelativePath)
	if pinnedError != nil {
		return delta, repoerrors.New(repoerrors.KindStaging, reference.Name, pinnedError)
	}
	delta.PreviousCommit = previousCommit

	currentCommit, revisionError := stager.repositoryManager.ResolveRevision(executionContext, reference.Path, headRevisionConstant)
	if revisionError != nil {
		return delta, repoerrors.New(repoerrors.KindStaging, reference.Name, revisionError)
	}
	delta.CurrentCommit = currentCommit
	if previousCommit == currentCommit {
		return delta, nil
	}

	commitLog, logError := stager.repositoryManager.CommitSummaries(executionContext, reference.Path, previousCommit, currentCommit)
	if logError != nil {
		return delta, repoerrors.New(repoerrors.KindStaging, reference.Name, logError)
	}
	delta.CommitLog = commitLog
	if delta.Empty() {
		return delta, nil
	}

	addError := stager.repositoryManager.Add(executionContext, project.Path, reference.RelativePath)
	stager.metrics.Record(metrics.OperationSubmoduleStage, addError)
	if addError != nil {
		return delta, repoerrors.New(repoerrors.KindStaging, reference.Name, addError)
	}
	return delta, nil
}

func (stager *Stager) logSkip(project *graph.ProjectNode, reference *graph.SubmoduleRef, reason error) {
	if reason == nil {
		stager.logger.Info(noNewCommitsMessageConstant,
			zap.String(logFieldProjectConstant, project.Name),
			zap.String(logFieldSubmoduleConstant, reference.Name),
		)
		return
	}
	fields := []zap.Field{
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldSubmoduleConstant, reference.Name),
		zap.Error(reason),
	}
	if errors.Is(reason, repoerrors.ErrSubmoduleUpdate) {
		stager.logger.Warn(submoduleSkippedMessageConstant, fields...)
		return
	}
	stager.logger.Error(submoduleSkippedMessageConstant, fields...)
}
