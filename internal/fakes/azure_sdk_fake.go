package fakes

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeKeyVaultClient is an in-memory Key Vault for one vault host.
type FakeKeyVaultClient struct {
	// VaultURL is echoed in secret IDs.
	VaultURL string
	// Secrets maps secret names to their data
	Secrets map[string]*KeyVaultSecretData
	// Errors maps secret names to errors to return
	Errors map[string]error
	// GetSecretFunc allows custom behavior for GetSecret
	GetSecretFunc func(ctx context.Context, name string, version string) (azsecrets.GetSecretResponse, error)

	mu    sync.Mutex
	calls []string
}

// KeyVaultSecretData holds the latest version of a secret and any older ones.
type KeyVaultSecretData struct {
	Value       *string
	Tags        map[string]*string
	ContentType *string
	Version     string
	Versions    map[string]string
}

// NewFakeKeyVaultClient creates an empty fake vault.
func NewFakeKeyVaultClient() *FakeKeyVaultClient {
	return &FakeKeyVaultClient{
		VaultURL: "https://test-vault.vault.azure.net",
		Secrets:  make(map[string]*KeyVaultSecretData),
		Errors:   make(map[string]error),
	}
}

// AddSecretString adds a secret without tags.
func (f *FakeKeyVaultClient) AddSecretString(name, value string) {
	f.AddSecretWithTags(name, value, nil)
}

// AddSecretWithTags adds a secret with string tags.
func (f *FakeKeyVaultClient) AddSecretWithTags(name, value string, tags map[string]string) {
	var azTags map[string]*string
	if tags != nil {
		azTags = make(map[string]*string, len(tags))
		for k, v := range tags {
			azTags[k] = to.Ptr(v)
		}
	}
	f.Secrets[name] = &KeyVaultSecretData{
		Value:    to.Ptr(value),
		Tags:     azTags,
		Version:  "0000000000000000000000000000000a",
		Versions: make(map[string]string),
	}
}

// AddSecretVersion adds an older version of an existing secret.
func (f *FakeKeyVaultClient) AddSecretVersion(name, version, value string) {
	data, ok := f.Secrets[name]
	if !ok {
		f.AddSecretString(name, value)
		data = f.Secrets[name]
	}
	data.Versions[version] = value
}

// AddError configures the fake to return err for a secret name.
func (f *FakeKeyVaultClient) AddError(name string, err error) {
	f.Errors[name] = err
}

// Calls returns the "name/version" pairs requested so far.
func (f *FakeKeyVaultClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// GetSecret mocks the GetSecret operation
func (f *FakeKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+"/"+version)
	f.mu.Unlock()

	if f.GetSecretFunc != nil {
		return f.GetSecretFunc(ctx, name, version)
	}

	if err := ctx.Err(); err != nil {
		return azsecrets.GetSecretResponse{}, err
	}

	if err, exists := f.Errors[name]; exists {
		return azsecrets.GetSecretResponse{}, err
	}

	data, exists := f.Secrets[name]
	if !exists {
		return azsecrets.GetSecretResponse{}, KeyVaultError(http.StatusNotFound, "SecretNotFound")
	}

	value := data.Value
	resolved := data.Version
	if version != "" && version != data.Version {
		v, ok := data.Versions[version]
		if !ok {
			return azsecrets.GetSecretResponse{}, KeyVaultError(http.StatusNotFound, "SecretNotFound")
		}
		value = to.Ptr(v)
		resolved = version
	}

	now := time.Now()
	id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s/%s", f.VaultURL, name, resolved))
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:          &id,
			Value:       value,
			Tags:        data.Tags,
			ContentType: data.ContentType,
			Attributes: &azsecrets.SecretAttributes{
				Enabled: to.Ptr(true),
				Created: &now,
				Updated: &now,
			},
		},
	}, nil
}

// KeyVaultError builds the error the SDK returns for a failed HTTP call.
func KeyVaultError(status int, code string) error {
	return &azcore.ResponseError{
		StatusCode: status,
		ErrorCode:  code,
	}
}
