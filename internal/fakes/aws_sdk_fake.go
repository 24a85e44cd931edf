package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager for one region.
type FakeSecretsManagerClient struct {
	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors returned by GetSecretValue
	Errors map[string]error
	// DescribeErrors maps secret names to errors returned by DescribeSecret
	DescribeErrors map[string]error

	mu    sync.Mutex
	calls []secretsmanager.GetSecretValueInput
}

// SecretData holds a mock secret. Versions maps version ids to values;
// Stages maps staging labels to version ids.
type SecretData struct {
	SecretString *string
	SecretBinary []byte
	VersionId    string
	Versions     map[string]string
	Stages       map[string]string
	Tags         map[string]string
	CreatedDate  time.Time
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets:        make(map[string]*SecretData),
		Errors:         make(map[string]error),
		DescribeErrors: make(map[string]error),
	}
}

// AddSecretString adds a string secret whose current version is versionId.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) *SecretData {
	versionId := "11111111-2222-3333-4444-555555555555"
	data := &SecretData{
		SecretString: aws.String(value),
		VersionId:    versionId,
		Versions:     map[string]string{versionId: value},
		Stages:       map[string]string{"AWSCURRENT": versionId},
		CreatedDate:  time.Now(),
	}
	f.Secrets[name] = data
	return data
}

// AddSecretBinary adds a binary secret.
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.Secrets[name] = &SecretData{
		SecretBinary: value,
		VersionId:    "binary-v1",
		Stages:       map[string]string{"AWSCURRENT": "binary-v1"},
		CreatedDate:  time.Now(),
	}
}

// AddError configures the mock to return an error for a specific secret
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// Calls returns the GetSecretValue inputs received so far.
func (f *FakeSecretsManagerClient) Calls() []secretsmanager.GetSecretValueInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]secretsmanager.GetSecretValueInput(nil), f.calls...)
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *params)
	f.mu.Unlock()

	secretName := aws.ToString(params.SecretId)

	if err, exists := f.Errors[secretName]; exists {
		return nil, err
	}

	data, exists := f.Secrets[secretName]
	if !exists {
		return nil, notFound(secretName)
	}

	versionId := data.VersionId
	if params.VersionStage != nil {
		id, ok := data.Stages[*params.VersionStage]
		if !ok {
			return nil, notFound(secretName)
		}
		versionId = id
	}
	if params.VersionId != nil {
		versionId = *params.VersionId
	}

	out := &secretsmanager.GetSecretValueOutput{
		ARN:          aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", secretName)),
		Name:         params.SecretId,
		SecretBinary: data.SecretBinary,
		VersionId:    aws.String(versionId),
		CreatedDate:  aws.Time(data.CreatedDate),
	}
	if data.SecretString != nil {
		value := *data.SecretString
		if data.Versions != nil {
			v, ok := data.Versions[versionId]
			if !ok {
				return nil, notFound(secretName)
			}
			value = v
		}
		out.SecretString = aws.String(value)
	}
	return out, nil
}

// DescribeSecret mocks the DescribeSecret operation
func (f *FakeSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	secretName := aws.ToString(params.SecretId)

	if err, exists := f.DescribeErrors[secretName]; exists {
		return nil, err
	}

	data, exists := f.Secrets[secretName]
	if !exists {
		return nil, notFound(secretName)
	}

	out := &secretsmanager.DescribeSecretOutput{
		ARN:         aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", secretName)),
		Name:        params.SecretId,
		CreatedDate: aws.Time(data.CreatedDate),
	}
	for k, v := range data.Tags {
		out.Tags = append(out.Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out, nil
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// AWSAccessDenied returns the API error AWS sends for missing IAM permissions.
func AWSAccessDenied(message string) error {
	return &smithy.GenericAPIError{Code: "AccessDeniedException", Message: message}
}

// FakeParameterStoreClient is an in-memory SSM Parameter Store.
type FakeParameterStoreClient struct {
	// Parameters maps full parameter names to their versions, oldest first
	Parameters map[string][]string
	// Tags maps parameter names to their tags
	Tags map[string]map[string]string
	// TagErrors maps parameter names to errors returned by ListTagsForResource
	TagErrors map[string]error
}

// NewFakeParameterStoreClient creates an empty Parameter Store.
func NewFakeParameterStoreClient() *FakeParameterStoreClient {
	return &FakeParameterStoreClient{
		Parameters: make(map[string][]string),
		Tags:       make(map[string]map[string]string),
		TagErrors:  make(map[string]error),
	}
}

// AddParameter appends a new version of a parameter.
func (f *FakeParameterStoreClient) AddParameter(name, value string) {
	f.Parameters[name] = append(f.Parameters[name], value)
}

// GetParameter mocks the GetParameter operation. Only numeric selectors are supported.
func (f *FakeParameterStoreClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(params.Name)
	var version int
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		if _, err := fmt.Sscanf(name[i+1:], "%d", &version); err != nil {
			return nil, &ssmtypes.ParameterVersionNotFound{Message: aws.String(name)}
		}
		name = name[:i]
	}

	versions, ok := f.Parameters[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String(name)}
	}
	if version == 0 {
		version = len(versions)
	}
	if version < 1 || version > len(versions) {
		return nil, &ssmtypes.ParameterVersionNotFound{Message: aws.String(name)}
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			ARN:     aws.String("arn:aws:ssm:us-east-1:123456789012:parameter" + name),
			Name:    aws.String(name),
			Type:    ssmtypes.ParameterTypeSecureString,
			Value:   aws.String(versions[version-1]),
			Version: int64(version),
		},
	}, nil
}

// ListTagsForResource mocks the ListTagsForResource operation
func (f *FakeParameterStoreClient) ListTagsForResource(ctx context.Context, params *ssm.ListTagsForResourceInput, optFns ...func(*ssm.Options)) (*ssm.ListTagsForResourceOutput, error) {
	name := aws.ToString(params.ResourceId)
	if err, ok := f.TagErrors[name]; ok {
		return nil, err
	}

	out := &ssm.ListTagsForResourceOutput{}
	for k, v := range f.Tags[name] {
		out.TagList = append(out.TagList, ssmtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out, nil
}
