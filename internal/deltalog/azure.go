package deltalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const (
	// envAzureAccount names the storage account for az:// locations.
	envAzureAccount = "AZURE_STORAGE_ACCOUNT"
	blobEndpointFmt = "https://%s.blob.core.windows.net/"
)

// ErrNoAzureAccount is returned for az:// locations when no storage account is configured.
var ErrNoAzureAccount = errors.New("azure storage account not set")

// AzureStorage serves abfss:// and az:// locations through the blob endpoint.
type AzureStorage struct {
	client    *azblob.Client
	account   string
	container string
	prefix    string
}

// NewAzureStorage creates a storage over container/prefix with an existing client.
func NewAzureStorage(client *azblob.Client, account, container, prefix string) *AzureStorage {
	return &AzureStorage{
		client:    client,
		account:   account,
		container: container,
		prefix:    strings.Trim(prefix, "/"),
	}
}

// NewAzureStorageFromLocation parses an abfss://container@account.dfs.core.windows.net/path
// or az://container/path location. A missing credential falls back to
// azidentity.NewDefaultAzureCredential.
func NewAzureStorageFromLocation(location string, caps Capabilities) (*AzureStorage, error) {
	account, container, prefix, err := parseAzureLocation(location, caps.AzureAccount)
	if err != nil {
		return nil, err
	}

	cred := caps.AzureCredential
	if cred == nil {
		defaultCred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, newAuthError(providerAzure, location, http.StatusUnauthorized, credErr)
		}

		cred = defaultCred
	}

	client, err := azblob.NewClient(fmt.Sprintf(blobEndpointFmt, account), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}

	return NewAzureStorage(client, account, container, prefix), nil
}

// parseAzureLocation extracts account, container and path prefix.
func parseAzureLocation(location, fallbackAccount string) (string, string, string, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("parse location %s: %w", location, err)
	}

	prefix := strings.Trim(parsed.Path, "/")

	if parsed.User != nil {
		container := parsed.User.Username()
		account, _, _ := strings.Cut(parsed.Host, ".")

		if container == "" || account == "" {
			return "", "", "", fmt.Errorf("%w: malformed azure location %s", ErrUnsupportedLocation, location)
		}

		return account, container, prefix, nil
	}

	account := fallbackAccount
	if account == "" {
		account = os.Getenv(envAzureAccount)
	}

	if account == "" {
		return "", "", "", fmt.Errorf("%w: set %s for %s", ErrNoAzureAccount, envAzureAccount, location)
	}

	if parsed.Host == "" {
		return "", "", "", fmt.Errorf("%w: no container in %s", ErrUnsupportedLocation, location)
	}

	return account, parsed.Host, prefix, nil
}

// List implements Storage.
func (s *AzureStorage) List(ctx context.Context, dir string) ([]Object, error) {
	fullPrefix := joinKey(s.prefix, dir) + "/"

	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})

	var objects []Object

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, s.classify(fullPrefix, err)
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}

			name := strings.TrimPrefix(*item.Name, fullPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}

			obj := Object{Name: name, Path: joinKey(dir, name)}

			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					obj.Size = *props.ContentLength
				}

				if props.LastModified != nil {
					obj.ModTime = *props.LastModified
				}
			}

			objects = append(objects, obj)
		}
	}

	if len(objects) == 0 {
		return nil, fmt.Errorf("list %s: %w", s.url(fullPrefix), ErrNotFound)
	}

	return objects, nil
}

// Open implements Storage.
func (s *AzureStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	blob := joinKey(s.prefix, path)

	resp, err := s.client.DownloadStream(ctx, s.container, blob, nil)
	if err != nil {
		return nil, s.classify(blob, err)
	}

	return resp.Body, nil
}

func (s *AzureStorage) url(key string) string {
	return fmt.Sprintf("abfss://%s@%s.dfs.core.windows.net/%s", s.container, s.account, key)
}

func (s *AzureStorage) classify(key string, err error) error {
	target := s.url(key)

	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("access %s: %w: %w", target, ErrNotFound, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && isAuthStatus(respErr.StatusCode) {
		return newAuthError(providerAzure, target, respErr.StatusCode, err)
	}

	var credErr *azidentity.AuthenticationFailedError
	if errors.As(err, &credErr) {
		return newAuthError(providerAzure, target, http.StatusUnauthorized, err)
	}

	return fmt.Errorf("access %s: %w", target, err)
}
