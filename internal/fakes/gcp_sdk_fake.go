package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager.
type FakeGCPSecretManagerClient struct {
	// Secrets maps full resource names (projects/X/secrets/Y) to their data
	Secrets map[string]*GCPSecretData
	// Versions maps version resource names (projects/X/secrets/Y/versions/Z) to their payload
	Versions map[string][]byte
	// Errors maps resource names to errors to return
	Errors map[string]error

	mu       sync.Mutex
	accessed []string
}

// GCPSecretData holds the metadata of a mock secret.
type GCPSecretData struct {
	Name       string
	CreateTime *timestamppb.Timestamp
	Labels     map[string]string
}

// NewFakeGCPSecretManagerClient creates a new mock GCP Secret Manager client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets:  make(map[string]*GCPSecretData),
		Versions: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretVersion adds a numbered version, creating the secret if needed.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(projectID, secretName, value string) string {
	secretFullName := fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)
	if _, exists := f.Secrets[secretFullName]; !exists {
		f.Secrets[secretFullName] = &GCPSecretData{
			Name:       secretFullName,
			CreateTime: timestamppb.New(time.Now()),
			Labels:     make(map[string]string),
		}
	}

	n := 1
	for name := range f.Versions {
		if strings.HasPrefix(name, secretFullName+"/versions/") {
			n++
		}
	}
	version := strconv.Itoa(n)
	f.Versions[secretFullName+"/versions/"+version] = []byte(value)
	return version
}

// SetLabels replaces the labels of an existing secret.
func (f *FakeGCPSecretManagerClient) SetLabels(projectID, secretName string, labels map[string]string) {
	f.Secrets[fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)].Labels = labels
}

// AddError configures the mock to return an error for a specific resource
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.Errors[resourceName] = err
}

// Accessed returns the version names requested so far.
func (f *FakeGCPSecretManagerClient) Accessed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.accessed...)
}

// AccessSecretVersion mocks the AccessSecretVersion operation. "latest"
// resolves to the highest numbered version.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	f.accessed = append(f.accessed, req.GetName())
	f.mu.Unlock()

	if err, exists := f.Errors[req.GetName()]; exists {
		return nil, err
	}

	name := req.GetName()
	if secret, ok := strings.CutSuffix(name, "/versions/latest"); ok {
		name = f.latest(secret)
	}

	data, exists := f.Versions[name]
	if !exists {
		return nil, GCPNotFoundError(req.GetName())
	}

	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    name,
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

func (f *FakeGCPSecretManagerClient) latest(secret string) string {
	var numbers []int
	for name := range f.Versions {
		if v, ok := strings.CutPrefix(name, secret+"/versions/"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				numbers = append(numbers, n)
			}
		}
	}
	if len(numbers) == 0 {
		return secret + "/versions/latest"
	}
	sort.Ints(numbers)
	return fmt.Sprintf("%s/versions/%d", secret, numbers[len(numbers)-1])
}

// GetSecret mocks the GetSecret operation
func (f *FakeGCPSecretManagerClient) GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	if err, exists := f.Errors[req.GetName()]; exists {
		return nil, err
	}

	secret, exists := f.Secrets[req.GetName()]
	if !exists {
		return nil, GCPNotFoundError(req.GetName())
	}

	return &secretmanagerpb.Secret{
		Name:       secret.Name,
		CreateTime: secret.CreateTime,
		Labels:     secret.Labels,
	}, nil
}

// GCPNotFoundError returns a gRPC NotFound error
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Secret [%s] not found", resourceName)
}

// GCPPermissionDeniedError returns a gRPC PermissionDenied error
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// GCPUnauthenticatedError returns a gRPC Unauthenticated error
func GCPUnauthenticatedError(message string) error {
	return status.Error(codes.Unauthenticated, message)
}
