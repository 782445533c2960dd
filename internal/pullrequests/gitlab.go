package pullrequests

import (
	"context"
	"fmt"
	"net/http"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/temirov/gitcaptain/internal/projects"
)

const (
	gitLabClientErrorTemplateConstant   = "gitlab client: %w"
	gitLabCreationErrorTemplateConstant = "create gitlab merge request in %s: %w"
)

// GitLabProvider opens merge requests that squash and remove their source branch.
type GitLabProvider struct {
	client *gl.Client
}

// NewGitLabProvider builds a GitLab provider for the configured host.
func NewGitLabProvider(configuration projects.PullRequestProviderConfiguration, token string, httpClient *http.Client) (Provider, error) {
	if settingError := requireSetting(configuration.Host, providerSettingHostConstant); settingError != nil {
		return nil, settingError
	}
	client, clientError := gl.NewClient(token, gl.WithBaseURL(configuration.Host), gl.WithHTTPClient(httpClient))
	if clientError != nil {
		return nil, fmt.Errorf(gitLabClientErrorTemplateConstant, clientError)
	}
	return &GitLabProvider{client: client}, nil
}

// CreatePullRequest implements Provider. An existing merge request for the branch yields an empty URL.
func (provider *GitLabProvider) CreatePullRequest(executionContext context.Context, request Request) (string, error) {
	options := &gl.CreateMergeRequestOptions{
		Title:              gl.Ptr(request.Title),
		Description:        gl.Ptr(request.Description),
		SourceBranch:       gl.Ptr(request.SourceBranch),
		TargetBranch:       gl.Ptr(request.TargetBranch),
		Squash:             gl.Ptr(true),
		RemoveSourceBranch: gl.Ptr(true),
	}

	created, response, creationError := provider.client.MergeRequests.CreateMergeRequest(request.RepositoryID, options, gl.WithContext(executionContext))
	if creationError != nil {
		if response != nil && response.StatusCode == http.StatusConflict {
			return "", nil
		}
		return "", fmt.Errorf(gitLabCreationErrorTemplateConstant, request.RepositoryID, creationError)
	}
	return created.WebURL, nil
}
