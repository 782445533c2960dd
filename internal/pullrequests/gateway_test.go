package pullrequests_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitcaptain/internal/projects"
	"github.com/temirov/gitcaptain/internal/pullrequests"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
)

const (
	testTokenConstant        = "secret-token"
	testSourceBranchConstant = "feature/TASK-1"
	testTargetBranchConstant = "main"
	testTitleConstant        = "TASK-1 Update submodules for api"
	testDescriptionConstant  = "feat(submodules): update links"
)

func environmentWith(values map[string]string) pullrequests.EnvironmentLookup {
	return func(name string) string {
		return values[name]
	}
}

func sampleRequest(repositoryID string) pullrequests.Request {
	return pullrequests.Request{
		RepositoryID: repositoryID,
		SourceBranch: testSourceBranchConstant,
		TargetBranch: testTargetBranchConstant,
		Title:        testTitleConstant,
		Description:  testDescriptionConstant,
	}
}

type stubProvider struct {
	url      string
	err      error
	requests []pullrequests.Request
}

func (provider *stubProvider) CreatePullRequest(_ context.Context, request pullrequests.Request) (string, error) {
	provider.requests = append(provider.requests, request)
	return provider.url, provider.err
}

func TestGatewayProviderConfigurationFailures(testInstance *testing.T) {
	testCases := []struct {
		name           string
		configurations []projects.PullRequestProviderConfiguration
		environment    map[string]string
		provider       string
		expectedError  error
	}{
		{
			name:          "not_configured",
			provider:      "gitlab",
			environment:   map[string]string{pullrequests.GitLabTokenEnvironmentVariable: testTokenConstant},
			expectedError: pullrequests.ErrProviderNotConfigured,
		},
		{
			name:           "missing_token",
			configurations: []projects.PullRequestProviderConfiguration{{Provider: "gitlab", Host: "https://gitlab.example.com"}},
			provider:       "gitlab",
			expectedError:  pullrequests.ErrTokenMissing,
		},
		{
			name:           "missing_gitlab_host",
			configurations: []projects.PullRequestProviderConfiguration{{Provider: "gitlab"}},
			environment:    map[string]string{pullrequests.GitLabTokenEnvironmentVariable: testTokenConstant},
			provider:       "GitLab",
			expectedError:  pullrequests.ErrSettingMissing,
		},
		{
			name:           "missing_azure_organization",
			configurations: []projects.PullRequestProviderConfiguration{{Provider: "azure-devops", Host: "https://dev.azure.com", Project: "platform"}},
			environment:    map[string]string{pullrequests.AzureDevOpsTokenEnvironmentVariable: testTokenConstant},
			provider:       "azure-devops",
			expectedError:  pullrequests.ErrSettingMissing,
		},
		{
			name:           "unsupported",
			configurations: []projects.PullRequestProviderConfiguration{{Provider: "bitbucket"}},
			provider:       "bitbucket",
			expectedError:  pullrequests.ErrProviderUnsupported,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			gateway := pullrequests.NewGateway(testCase.configurations, pullrequests.GatewayOptions{Environment: environmentWith(testCase.environment)})

			_, providerError := gateway.Provider(testCase.provider)
			require.Error(subTest, providerError)
			require.ErrorIs(subTest, providerError, testCase.expectedError)
			require.ErrorIs(subTest, providerError, repoerrors.ErrProviderConfiguration)
			require.False(subTest, repoerrors.IsFatal(providerError))
		})
	}
}

func TestGatewayCreatePullRequestClassifiesErrors(testInstance *testing.T) {
	configurations := []projects.PullRequestProviderConfiguration{{Provider: "github"}}
	environment := environmentWith(map[string]string{pullrequests.GitHubTokenEnvironmentVariable: testTokenConstant})

	testInstance.Run("success", func(subTest *testing.T) {
		stub := &stubProvider{url: "https://example.com/pull/1"}
		gateway := pullrequests.NewGateway(configurations, pullrequests.GatewayOptions{Environment: environment})
		gateway.Register(pullrequests.ProviderGitHub, pullrequests.GitHubTokenEnvironmentVariable, func(projects.PullRequestProviderConfiguration, string, *http.Client) (pullrequests.Provider, error) {
			return stub, nil
		})

		pullRequestURL, creationError := gateway.CreatePullRequest(context.Background(), "github", sampleRequest("acme/api"))
		require.NoError(subTest, creationError)
		require.Equal(subTest, "https://example.com/pull/1", pullRequestURL)
		require.Equal(subTest, []pullrequests.Request{sampleRequest("acme/api")}, stub.requests)
	})

	testInstance.Run("creation_failure", func(subTest *testing.T) {
		stub := &stubProvider{err: errors.New("boom")}
		gateway := pullrequests.NewGateway(configurations, pullrequests.GatewayOptions{Environment: environment})
		gateway.Register(pullrequests.ProviderGitHub, pullrequests.GitHubTokenEnvironmentVariable, func(projects.PullRequestProviderConfiguration, string, *http.Client) (pullrequests.Provider, error) {
			return stub, nil
		})

		_, creationError := gateway.CreatePullRequest(context.Background(), "github", sampleRequest("acme/api"))
		require.ErrorIs(subTest, creationError, repoerrors.ErrPullRequestCreation)
		kind, classified := repoerrors.KindOf(creationError)
		require.True(subTest, classified)
		require.Equal(subTest, repoerrors.KindPullRequestCreation, kind)
	})

	testInstance.Run("missing_repository_id", func(subTest *testing.T) {
		gateway := pullrequests.NewGateway(configurations, pullrequests.GatewayOptions{Environment: environment})

		_, creationError := gateway.CreatePullRequest(context.Background(), "github", sampleRequest(""))
		require.ErrorIs(subTest, creationError, pullrequests.ErrRepositoryIDMissing)
		require.ErrorIs(subTest, creationError, repoerrors.ErrProviderConfiguration)
	})
}

func TestGitLabProviderCreatesMergeRequest(testInstance *testing.T) {
	testCases := []struct {
		name        string
		status      int
		response    string
		expectedURL string
	}{
		{
			name:        "created",
			status:      http.StatusCreated,
			response:    `{"iid": 7, "web_url": "https://gitlab.example.com/acme/api/-/merge_requests/7"}`,
			expectedURL: "https://gitlab.example.com/acme/api/-/merge_requests/7",
		},
		{
			name:     "already_exists",
			status:   http.StatusConflict,
			response: `{"message": ["Another open merge request already exists for this source branch"]}`,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			var receivedBody map[string]any
			var receivedToken string
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				if request.Method != http.MethodPost || request.URL.Path != "/api/v4/projects/42/merge_requests" {
					writer.WriteHeader(http.StatusNotFound)
					return
				}
				receivedToken = request.Header.Get("PRIVATE-TOKEN")
				payload, _ := io.ReadAll(request.Body)
				_ = json.Unmarshal(payload, &receivedBody)
				writer.Header().Set("Content-Type", "application/json")
				writer.WriteHeader(testCase.status)
				_, _ = io.WriteString(writer, testCase.response)
			}))
			defer server.Close()

			provider, providerError := pullrequests.NewGitLabProvider(projects.PullRequestProviderConfiguration{Provider: "gitlab", Host: server.URL}, testTokenConstant, server.Client())
			require.NoError(subTest, providerError)

			pullRequestURL, creationError := provider.CreatePullRequest(context.Background(), sampleRequest("42"))
			require.NoError(subTest, creationError)
			require.Equal(subTest, testCase.expectedURL, pullRequestURL)
			require.Equal(subTest, testTokenConstant, receivedToken)
			require.Equal(subTest, testSourceBranchConstant, receivedBody["source_branch"])
			require.Equal(subTest, testTargetBranchConstant, receivedBody["target_branch"])
			require.Equal(subTest, testTitleConstant, receivedBody["title"])
			require.Equal(subTest, true, receivedBody["squash"])
			require.Equal(subTest, true, receivedBody["remove_source_branch"])
		})
	}
}

func TestGitHubProviderCreatesPullRequest(testInstance *testing.T) {
	testCases := []struct {
		name        string
		status      int
		response    string
		expectedURL string
	}{
		{
			name:        "created",
			status:      http.StatusCreated,
			response:    `{"number": 3, "html_url": "https://github.example.com/acme/api/pull/3"}`,
			expectedURL: "https://github.example.com/acme/api/pull/3",
		},
		{
			name:     "already_exists",
			status:   http.StatusUnprocessableEntity,
			response: `{"message": "Validation Failed"}`,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			var receivedBody map[string]any
			var receivedAuthorization string
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				if request.Method != http.MethodPost || request.URL.Path != "/api/v3/repos/acme/api/pulls" {
					writer.WriteHeader(http.StatusNotFound)
					return
				}
				receivedAuthorization = request.Header.Get("Authorization")
				payload, _ := io.ReadAll(request.Body)
				_ = json.Unmarshal(payload, &receivedBody)
				writer.Header().Set("Content-Type", "application/json")
				writer.WriteHeader(testCase.status)
				_, _ = io.WriteString(writer, testCase.response)
			}))
			defer server.Close()

			provider, providerError := pullrequests.NewGitHubProvider(projects.PullRequestProviderConfiguration{Provider: "github", Host: server.URL}, testTokenConstant, server.Client())
			require.NoError(subTest, providerError)

			pullRequestURL, creationError := provider.CreatePullRequest(context.Background(), sampleRequest("acme/api"))
			require.NoError(subTest, creationError)
			require.Equal(subTest, testCase.expectedURL, pullRequestURL)
			require.Equal(subTest, "Bearer "+testTokenConstant, receivedAuthorization)
			require.Equal(subTest, testSourceBranchConstant, receivedBody["head"])
			require.Equal(subTest, testTargetBranchConstant, receivedBody["base"])
			require.Equal(subTest, testDescriptionConstant, receivedBody["body"])
		})
	}
}

func TestGitHubProviderRejectsMalformedRepository(testInstance *testing.T) {
	provider, providerError := pullrequests.NewGitHubProvider(projects.PullRequestProviderConfiguration{Provider: "github"}, testTokenConstant, http.DefaultClient)
	require.NoError(testInstance, providerError)

	_, creationError := provider.CreatePullRequest(context.Background(), sampleRequest("api"))
	require.ErrorIs(testInstance, creationError, pullrequests.ErrRepositoryIDMissing)
}

func TestAzureDevOpsProviderCreatesPullRequest(testInstance *testing.T) {
	testCases := []struct {
		name          string
		status        int
		response      string
		expectedURL   string
		expectedError bool
	}{
		{
			name:     "created",
			status:   http.StatusCreated,
			response: `{"pullRequestId": 15, "repository": {"name": "api"}}`,
		},
		{
			name:     "already_exists",
			status:   http.StatusConflict,
			response: `{"message": "An active pull request already exists"}`,
		},
		{
			name:          "unauthorized",
			status:        http.StatusUnauthorized,
			response:      `{"message": "denied"}`,
			expectedError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			var receivedBody map[string]any
			var receivedPassword string
			var receivedQuery string
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				if request.Method != http.MethodPost || request.URL.Path != "/acme/platform/_apis/git/repositories/repo-guid/pullrequests" {
					writer.WriteHeader(http.StatusNotFound)
					return
				}
				_, receivedPassword, _ = request.BasicAuth()
				receivedQuery = request.URL.Query().Get("api-version")
				payload, _ := io.ReadAll(request.Body)
				_ = json.Unmarshal(payload, &receivedBody)
				writer.WriteHeader(testCase.status)
				_, _ = io.WriteString(writer, testCase.response)
			}))
			defer server.Close()

			provider, providerError := pullrequests.NewAzureDevOpsProvider(projects.PullRequestProviderConfiguration{
				Provider:     "azure-devops",
				Host:         server.URL + "/",
				Organization: "acme",
				Project:      "platform",
			}, testTokenConstant, server.Client())
			require.NoError(subTest, providerError)

			pullRequestURL, creationError := provider.CreatePullRequest(context.Background(), sampleRequest("repo-guid"))
			require.Equal(subTest, testTokenConstant, receivedPassword)
			require.Equal(subTest, "7.1-preview.1", receivedQuery)
			require.Equal(subTest, "refs/heads/"+testSourceBranchConstant, receivedBody["sourceRefName"])
			require.Equal(subTest, "refs/heads/"+testTargetBranchConstant, receivedBody["targetRefName"])
			if testCase.expectedError {
				require.Error(subTest, creationError)
				require.Empty(subTest, pullRequestURL)
				return
			}
			require.NoError(subTest, creationError)
			if testCase.status == http.StatusCreated {
				require.Equal(subTest, server.URL+"/acme/platform/_git/api/pullrequest/15", pullRequestURL)
				return
			}
			require.Empty(subTest, pullRequestURL)
		})
	}
}
