package gitrepotest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/temirov/gitcaptain/internal/execshell"
)

const (
	bareRepositorySuffixConstant   = ".git"
	seedDirectoryPrefixConstant    = "seed-"
	changeFileTemplateConstant     = "change-%d.txt"
	sandboxFilePermissionsConstant = 0o644
)

// sandboxEnvironment isolates git from the user and system configuration and fixes the commit identity.
var sandboxEnvironment = map[string]string{
	"GIT_CONFIG_NOSYSTEM": "1",
	"GIT_AUTHOR_NAME":     "Gitcaptain Test",
	"GIT_AUTHOR_EMAIL":    "test@example.com",
	"GIT_COMMITTER_NAME":  "Gitcaptain Test",
	"GIT_COMMITTER_EMAIL": "test@example.com",
}

// Sandbox runs the real git binary inside a temporary directory.
type Sandbox struct {
	testInstance *testing.T
	Root         string
	Executor     *execshell.ShellExecutor
	changes      int
}

// NewSandbox prepares an isolated git environment, skipping the test when git is not installed.
// It changes process environment variables, so tests using it cannot run in parallel.
func NewSandbox(testInstance *testing.T) *Sandbox {
	testInstance.Helper()
	if _, lookupError := exec.LookPath(string(execshell.CommandGit)); lookupError != nil {
		testInstance.Skip("git not available")
	}

	homeDirectory := testInstance.TempDir()
	testInstance.Setenv("HOME", homeDirectory)
	testInstance.Setenv("XDG_CONFIG_HOME", homeDirectory)
	for key, value := range sandboxEnvironment {
		testInstance.Setenv(key, value)
	}

	executor, executorError := execshell.NewShellExecutor(zaptest.NewLogger(testInstance), execshell.NewOSCommandRunner())
	require.NoError(testInstance, executorError)
	return &Sandbox{testInstance: testInstance, Root: testInstance.TempDir(), Executor: executor}
}

// Path resolves elements below the sandbox root.
func (sandbox *Sandbox) Path(elements ...string) string {
	return filepath.Join(append([]string{sandbox.Root}, elements...)...)
}

// Git runs git in the directory and returns its trimmed standard output, failing the test on error.
func (sandbox *Sandbox) Git(directory string, arguments ...string) string {
	sandbox.testInstance.Helper()
	result, executionError := sandbox.Executor.ExecuteGit(context.Background(), execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: directory,
	})
	require.NoError(sandbox.testInstance, executionError)
	return strings.TrimSpace(result.StandardOutput)
}

// CreateRemote creates a bare repository whose default branch holds one commit and returns its path.
func (sandbox *Sandbox) CreateRemote(name string, branchName string) string {
	sandbox.testInstance.Helper()
	seedPath := sandbox.Path(seedDirectoryPrefixConstant + name)
	sandbox.Git(sandbox.Root, "init", "-b", branchName, seedPath)
	sandbox.Commit(seedPath, "initial commit")

	remotePath := sandbox.Path(name + bareRepositorySuffixConstant)
	sandbox.Git(sandbox.Root, "clone", "--bare", seedPath, remotePath)
	return remotePath
}

// Clone clones the remote into a directory below the sandbox root and returns the working tree path.
func (sandbox *Sandbox) Clone(remotePath string, elements ...string) string {
	sandbox.testInstance.Helper()
	clonePath := sandbox.Path(elements...)
	require.NoError(sandbox.testInstance, os.MkdirAll(filepath.Dir(clonePath), 0o755))
	sandbox.Git(sandbox.Root, "clone", remotePath, clonePath)
	return clonePath
}

// Commit records a new file in the working tree and returns the resulting HEAD.
func (sandbox *Sandbox) Commit(directory string, message string) string {
	sandbox.testInstance.Helper()
	sandbox.changes++
	fileName := fmt.Sprintf(changeFileTemplateConstant, sandbox.changes)
	require.NoError(sandbox.testInstance, os.WriteFile(filepath.Join(directory, fileName), []byte(message+"\n"), sandboxFilePermissionsConstant))
	sandbox.Git(directory, "add", fileName)
	sandbox.Git(directory, "commit", "-m", message)
	return sandbox.Head(directory)
}

// Publish commits each message in a fresh clone of the remote and pushes the branch.
func (sandbox *Sandbox) Publish(remotePath string, branchName string, messages ...string) string {
	sandbox.testInstance.Helper()
	sandbox.changes++
	publisherPath := sandbox.Clone(remotePath, fmt.Sprintf("publisher-%d", sandbox.changes))
	sandbox.Git(publisherPath, "checkout", branchName)
	for _, message := range messages {
		sandbox.Commit(publisherPath, message)
	}
	sandbox.Git(publisherPath, "push", "origin", branchName)
	return sandbox.Head(publisherPath)
}

// Head returns the commit checked out in the working tree.
func (sandbox *Sandbox) Head(directory string) string {
	sandbox.testInstance.Helper()
	return sandbox.Git(directory, "rev-parse", "HEAD")
}

// Parents lists the parent commits of the revision.
func (sandbox *Sandbox) Parents(directory string, revision string) []string {
	sandbox.testInstance.Helper()
	fields := strings.Fields(sandbox.Git(directory, "rev-list", "--parents", "-n", "1", revision))
	return fields[1:]
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (sandbox *Sandbox) IsAncestor(directory string, ancestor string, descendant string) bool {
	_, executionError := sandbox.Executor.ExecuteGit(context.Background(), execshell.CommandDetails{
		Arguments:        []string{"merge-base", "--is-ancestor", ancestor, descendant},
		WorkingDirectory: directory,
	})
	return executionError == nil
}
