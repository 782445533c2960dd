package pullrequests

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/temirov/gitcaptain/internal/projects"
)

const (
	azureAPIVersionConstant           = "7.1-preview.1"
	azurePullRequestsURLTemplate      = "%s/%s/%s/_apis/git/repositories/%s/pullrequests?api-version=%s"
	azurePullRequestLinkTemplate      = "%s/%s/%s/_git/%s/pullrequest/%d"
	azureBranchReferenceTemplate      = "refs/heads/%s"
	azureContentTypeHeaderConstant    = "Content-Type"
	azureContentTypeValueConstant     = "application/json; charset=utf-8"
	azureMarshalErrorTemplateConstant = "marshal azure devops pull request: %w"
	azureRequestErrorTemplateConstant = "build azure devops request: %w"
	azureSendErrorTemplateConstant    = "send azure devops request: %w"
	azureDecodeErrorTemplateConstant  = "decode azure devops response: %w"
	azureStatusErrorTemplateConstant  = "azure devops returned %s: %s"
	azureResponseBodyLimitConstant    = 1 << 20
)

type azurePullRequestPayload struct {
	SourceRefName string `json:"sourceRefName"`
	TargetRefName string `json:"targetRefName"`
	Title         string `json:"title"`
	Description   string `json:"description"`
}

type azurePullRequestResponse struct {
	PullRequestID int `json:"pullRequestId"`
	Repository    struct {
		Name string `json:"name"`
	} `json:"repository"`
}

// AzureDevOpsProvider opens pull requests through the Azure DevOps REST API.
type AzureDevOpsProvider struct {
	host         string
	organization string
	project      string
	token        string
	httpClient   *http.Client
}

// NewAzureDevOpsProvider builds an Azure DevOps provider. Host, organization and project are required.
func NewAzureDevOpsProvider(configuration projects.PullRequestProviderConfiguration, token string, httpClient *http.Client) (Provider, error) {
	for setting, value := range map[string]string{
		providerSettingHostConstant:         configuration.Host,
		providerSettingOrganizationConstant: configuration.Organization,
		providerSettingProjectConstant:      configuration.Project,
	} {
		if settingError := requireSetting(value, setting); settingError != nil {
			return nil, settingError
		}
	}
	return &AzureDevOpsProvider{
		host:         strings.TrimRight(configuration.Host, "/"),
		organization: configuration.Organization,
		project:      configuration.Project,
		token:        token,
		httpClient:   httpClient,
	}, nil
}

// CreatePullRequest implements Provider. An existing pull request for the branch yields an empty URL.
func (provider *AzureDevOpsProvider) CreatePullRequest(executionContext context.Context, request Request) (string, error) {
	payload, marshalError := json.Marshal(azurePullRequestPayload{
		SourceRefName: fmt.Sprintf(azureBranchReferenceTemplate, request.SourceBranch),
		TargetRefName: fmt.Sprintf(azureBranchReferenceTemplate, request.TargetBranch),
		Title:         request.Title,
		Description:   request.Description,
	})
	if marshalError != nil {
		return "", fmt.Errorf(azureMarshalErrorTemplateConstant, marshalError)
	}

	endpoint := fmt.Sprintf(azurePullRequestsURLTemplate,
		provider.host,
		url.PathEscape(provider.organization),
		url.PathEscape(provider.project),
		url.PathEscape(request.RepositoryID),
		azureAPIVersionConstant,
	)
	httpRequest, requestError := http.NewRequestWithContext(executionContext, http.MethodPost, endpoint, bytes.NewReader(payload))
	if requestError != nil {
		return "", fmt.Errorf(azureRequestErrorTemplateConstant, requestError)
	}
	httpRequest.Header.Set(azureContentTypeHeaderConstant, azureContentTypeValueConstant)
	httpRequest.SetBasicAuth("", provider.token)

	response, sendError := provider.httpClient.Do(httpRequest)
	if sendError != nil {
		return "", fmt.Errorf(azureSendErrorTemplateConstant, sendError)
	}
	defer response.Body.Close()

	body, readError := io.ReadAll(io.LimitReader(response.Body, azureResponseBodyLimitConstant))
	if readError != nil {
		return "", fmt.Errorf(azureDecodeErrorTemplateConstant, readError)
	}

	switch {
	case response.StatusCode == http.StatusConflict:
		return "", nil
	case response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices:
		return "", fmt.Errorf(azureStatusErrorTemplateConstant, response.Status, strings.TrimSpace(string(body)))
	}

	var created azurePullRequestResponse
	if decodeError := json.Unmarshal(body, &created); decodeError != nil {
		return "", fmt.Errorf(azureDecodeErrorTemplateConstant, decodeError)
	}
	if created.PullRequestID == 0 || len(created.Repository.Name) == 0 {
		return "", nil
	}
	return fmt.Sprintf(azurePullRequestLinkTemplate, provider.host, provider.organization, provider.project, created.Repository.Name, created.PullRequestID), nil
}
