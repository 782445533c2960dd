// Package metrics counts the git and pull request operations of a run and writes them in the
// Prometheus text format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels a counted step.
type Operation string

const (
	OperationBranchResolution Operation = "branch_resolution"
	OperationSubmodulePull    Operation = "submodule_pull"
	OperationSubmodulePush    Operation = "submodule_push"
	OperationSubmoduleStage   Operation = "submodule_stage"
	OperationCommit           Operation = "commit"
	OperationPush             Operation = "push"
	OperationPullRequest      Operation = "pull_request"
	OperationRemoteUpdate     Operation = "remote_update"
	OperationBranchSwitch     Operation = "branch_switch"
	OperationGitCommand       Operation = "git_command"
)

const (
	metricsNamespaceConstant         = "gitcaptain"
	operationsMetricNameConstant     = "operations_total"
	operationsMetricHelpConstant     = "Completed operations by kind."
	failuresMetricNameConstant       = "failures_total"
	failuresMetricHelpConstant       = "Failed operations by kind."
	operationLabelConstant           = "operation"
	writeTextfileErrorTemplate       = "write metrics textfile %s: %w"
	registrationErrorTemplateMessage = "register metrics collectors: %w"
)

// Recorder holds the counters of one run. A nil Recorder ignores every call.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
}

// NewRecorder registers the run counters on a private registry.
func NewRecorder() (*Recorder, error) {
	registry := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespaceConstant,
		Name:      operationsMetricNameConstant,
		Help:      operationsMetricHelpConstant,
	}, []string{operationLabelConstant})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespaceConstant,
		Name:      failuresMetricNameConstant,
		Help:      failuresMetricHelpConstant,
	}, []string{operationLabelConstant})

	for _, collector := range []prometheus.Collector{operations, failures} {
		if registrationError := registry.Register(collector); registrationError != nil {
			return nil, fmt.Errorf(registrationErrorTemplateMessage, registrationError)
		}
	}
	return &Recorder{registry: registry, operations: operations, failures: failures}, nil
}

// Succeeded counts a completed operation.
func (recorder *Recorder) Succeeded(operation Operation) {
	if recorder == nil {
		return
	}
	recorder.operations.WithLabelValues(string(operation)).Inc()
}

// Failed counts a failed operation.
func (recorder *Recorder) Failed(operation Operation) {
	if recorder == nil {
		return
	}
	recorder.failures.WithLabelValues(string(operation)).Inc()
}

// Record counts the operation as failed when err is non-nil and as completed otherwise.
func (recorder *Recorder) Record(operation Operation, err error) {
	if err != nil {
		recorder.Failed(operation)
		return
	}
	recorder.Succeeded(operation)
}

// Registry exposes the registry the counters live in.
func (recorder *Recorder) Registry() *prometheus.Registry {
	if recorder == nil {
		return nil
	}
	return recorder.registry
}

// WriteTextfile writes the counters for the node exporter textfile collector. An empty path is a no-op.
func (recorder *Recorder) WriteTextfile(path string) error {
	if recorder == nil || len(path) == 0 {
		return nil
	}
	if writeError := prometheus.WriteToTextfile(path, recorder.registry); writeError != nil {
		return fmt.Errorf(writeTextfileErrorTemplate, path, writeError)
	}
	return nil
}
