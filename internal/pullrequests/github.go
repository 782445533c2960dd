package pullrequests

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/temirov/gitcaptain/internal/projects"
)

const (
	gitHubEnterpriseErrorTemplateConstant = "github enterprise urls: %w"
	gitHubCreationErrorTemplateConstant   = "create github pull request in %s: %w"
	gitHubRepositoryTemplateConstant      = "%w: %q is not owner/repository"
	repositorySeparatorConstant           = "/"
)

// GitHubProvider opens pull requests on github.com or a GitHub Enterprise host. Repository ids are owner/repository.
type GitHubProvider struct {
	client *gh.Client
}

// NewGitHubProvider builds a GitHub provider. A configured host selects GitHub Enterprise.
func NewGitHubProvider(configuration projects.PullRequestProviderConfiguration, token string, httpClient *http.Client) (Provider, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)
	if len(strings.TrimSpace(configuration.Host)) > 0 {
		enterpriseClient, enterpriseError := client.WithEnterpriseURLs(configuration.Host, configuration.Host)
		if enterpriseError != nil {
			return nil, fmt.Errorf(gitHubEnterpriseErrorTemplateConstant, enterpriseError)
		}
		client = enterpriseClient
	}
	return &GitHubProvider{client: client}, nil
}

// CreatePullRequest implements Provider. An existing pull request for the branch pair yields an empty URL.
func (provider *GitHubProvider) CreatePullRequest(executionContext context.Context, request Request) (string, error) {
	owner, repository, found := strings.Cut(request.RepositoryID, repositorySeparatorConstant)
	if !found || len(owner) == 0 || len(repository) == 0 {
		return "", fmt.Errorf(gitHubRepositoryTemplateConstant, ErrRepositoryIDMissing, request.RepositoryID)
	}

	created, response, creationError := provider.client.PullRequests.Create(executionContext, owner, repository, &gh.NewPullRequest{
		Title: gh.Ptr(request.Title),
		Head:  gh.Ptr(request.SourceBranch),
		Base:  gh.Ptr(request.TargetBranch),
		Body:  gh.Ptr(request.Description),
	})
	if creationError != nil {
		if response != nil && response.StatusCode == http.StatusUnprocessableEntity {
			return "", nil
		}
		return "", fmt.Errorf(gitHubCreationErrorTemplateConstant, request.RepositoryID, creationError)
	}
	return created.GetHTMLURL(), nil
}
