// Package pullrequests creates pull and merge requests through whichever hosting service a run is configured
// for. The link workflow only ever sees the returned URL.
package pullrequests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/temirov/gitcaptain/internal/projects"
	repoerrors "github.com/temirov/gitcaptain/internal/repos/errors"
)

// ProviderName identifies a supported hosting service.
type ProviderName string

const (
	ProviderGitLab      ProviderName = "gitlab"
	ProviderAzureDevOps ProviderName = "azure-devops"
	ProviderGitHub      ProviderName = "github"
)

const (
	// GitLabTokenEnvironmentVariable holds the GitLab personal access token.
	GitLabTokenEnvironmentVariable = "GITLAB_PERSONAL_ACCESS_TOKEN"
	// AzureDevOpsTokenEnvironmentVariable holds the Azure DevOps personal access token.
	AzureDevOpsTokenEnvironmentVariable = "AZURE_DEVOPS_PERSONAL_ACCESS_TOKEN"
	// GitHubTokenEnvironmentVariable holds the GitHub token.
	GitHubTokenEnvironmentVariable = "GITHUB_TOKEN"
)

const (
	defaultTimeoutConstant              = 30 * time.Second
	providerNotConfiguredMessage        = "pull request provider is not configured"
	providerUnsupportedMessage          = "pull request provider is not supported"
	tokenMissingMessageConstant         = "access token environment variable is not set"
	settingMissingMessageConstant       = "provider setting is required"
	repositoryIDMissingMessageConstant  = "repository id is required"
	providerSubjectTemplateConstant     = "%s provider"
	providerEntryTemplateConstant       = "%w: %s"
	tokenMissingTemplateConstant        = "%w: %s"
	settingMissingTemplateConstant      = "%w: %s"
	pullRequestSubjectTemplateConstant  = "%s pull request for %s"
	providerSettingHostConstant         = "host"
	providerSettingOrganizationConstant = "organization"
	providerSettingProjectConstant      = "project"
)

var (
	// ErrProviderNotConfigured indicates the run names a provider the configuration does not declare.
	ErrProviderNotConfigured = errors.New(providerNotConfiguredMessage)
	// ErrProviderUnsupported indicates a provider name without an implementation.
	ErrProviderUnsupported = errors.New(providerUnsupportedMessage)
	// ErrTokenMissing indicates the provider's token environment variable is empty.
	ErrTokenMissing = errors.New(tokenMissingMessageConstant)
	// ErrSettingMissing indicates a provider setting needed by the implementation is empty.
	ErrSettingMissing = errors.New(settingMissingMessageConstant)
	// ErrRepositoryIDMissing indicates the request does not name the repository on the provider.
	ErrRepositoryIDMissing = errors.New(repositoryIDMissingMessageConstant)
)

// Request describes one pull request.
type Request struct {
	RepositoryID string
	SourceBranch string
	TargetBranch string
	Title        string
	Description  string
}

// Provider creates a pull request and returns its web URL. An empty URL with a nil error means the service
// accepted the call without reporting a link, for example because the request already existed.
type Provider interface {
	CreatePullRequest(executionContext context.Context, request Request) (string, error)
}

// EnvironmentLookup reads an environment variable.
type EnvironmentLookup func(name string) string

// Factory builds a provider from its configuration, token and HTTP client.
type Factory func(configuration projects.PullRequestProviderConfiguration, token string, httpClient *http.Client) (Provider, error)

type registration struct {
	tokenVariable string
	factory       Factory
}

// GatewayOptions tune the Gateway.
type GatewayOptions struct {
	Environment EnvironmentLookup
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Gateway resolves providers by name from configuration and creates pull requests through them.
type Gateway struct {
	configurations []projects.PullRequestProviderConfiguration
	registrations  map[ProviderName]registration
	environment    EnvironmentLookup
	httpClient     *http.Client
	timeout        time.Duration
}

// NewGateway constructs a Gateway over the configured providers.
func NewGateway(configurations []projects.PullRequestProviderConfiguration, options GatewayOptions) *Gateway {
	environment := options.Environment
	if environment == nil {
		environment = os.Getenv
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeoutConstant
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Gateway{
		configurations: append([]projects.PullRequestProviderConfiguration{}, configurations...),
		registrations: map[ProviderName]registration{
			ProviderGitLab:      {tokenVariable: GitLabTokenEnvironmentVariable, factory: NewGitLabProvider},
			ProviderAzureDevOps: {tokenVariable: AzureDevOpsTokenEnvironmentVariable, factory: NewAzureDevOpsProvider},
			ProviderGitHub:      {tokenVariable: GitHubTokenEnvironmentVariable, factory: NewGitHubProvider},
		},
		environment: environment,
		httpClient:  httpClient,
		timeout:     timeout,
	}
}

// Register replaces or adds the factory for a provider name.
func (gateway *Gateway) Register(name ProviderName, tokenVariable string, factory Factory) {
	gateway.registrations[name] = registration{tokenVariable: tokenVariable, factory: factory}
}

// ProviderNames lists configured provider names in declaration order.
func (gateway *Gateway) ProviderNames() []string {
	names := make([]string, 0, len(gateway.configurations))
	for _, configuration := range gateway.configurations {
		names = append(names, configuration.Provider)
	}
	return names
}

// Provider instantiates the named provider. Failures are provider configuration errors.
func (gateway *Gateway) Provider(name string) (Provider, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))
	subject := fmt.Sprintf(providerSubjectTemplateConstant, normalizedName)

	var configuration projects.PullRequestProviderConfiguration
	configured := false
	for _, candidate := range gateway.configurations {
		if candidate.Provider == normalizedName {
			configuration = candidate
			configured = true
			break
		}
	}
	if !configured {
		return nil, repoerrors.New(repoerrors.KindProviderConfiguration, subject, fmt.Errorf(providerEntryTemplateConstant, ErrProviderNotConfigured, normalizedName))
	}

	registered, supported := gateway.registrations[ProviderName(normalizedName)]
	if !supported {
		return nil, repoerrors.New(repoerrors.KindProviderConfiguration, subject, fmt.Errorf(providerEntryTemplateConstant, ErrProviderUnsupported, normalizedName))
	}

	token := strings.TrimSpace(gateway.environment(registered.tokenVariable))
	if len(token) == 0 {
		return nil, repoerrors.New(repoerrors.KindProviderConfiguration, subject, fmt.Errorf(tokenMissingTemplateConstant, ErrTokenMissing, registered.tokenVariable))
	}

	provider, factoryError := registered.factory(configuration, token, gateway.httpClient)
	if factoryError != nil {
		return nil, repoerrors.New(repoerrors.KindProviderConfiguration, subject, factoryError)
	}
	return provider, nil
}

// CreatePullRequest resolves the provider and creates the request within the gateway timeout.
// Provider resolution failures are provider configuration errors; everything else is a creation error.
func (gateway *Gateway) CreatePullRequest(executionContext context.Context, providerName string, request Request) (string, error) {
	provider, providerError := gateway.Provider(providerName)
	if providerError != nil {
		return "", providerError
	}

	subject := fmt.Sprintf(pullRequestSubjectTemplateConstant, strings.ToLower(strings.TrimSpace(providerName)), request.RepositoryID)
	if len(strings.TrimSpace(request.RepositoryID)) == 0 {
		return "", repoerrors.New(repoerrors.KindProviderConfiguration, subject, ErrRepositoryIDMissing)
	}

	timeoutContext, cancel := context.WithTimeout(executionContext, gateway.timeout)
	defer cancel()

	pullRequestURL, creationError := provider.CreatePullRequest(timeoutContext, request)
	if creationError != nil {
		return "", repoerrors.New(repoerrors.KindPullRequestCreation, subject, creationError)
	}
	return pullRequestURL, nil
}

func requireSetting(value string, setting string) error {
	if len(strings.TrimSpace(value)) == 0 {
		return fmt.Errorf(settingMissingTemplateConstant, ErrSettingMissing, setting)
	}
	return nil
}
