// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package azurestorage builds Azure Blob Storage container clients shared by the landing zone
// source and the blob checkpoint store.
package azurestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
	// ErrBlobNotFound is returned by Container.Download when the blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")
)

// Config holds the storage account coordinates. Either ConnectionString or AccountName must be
// set; with AccountName the default Azure credential chain is used.
type Config struct {
	ConnectionString string `env:"AZURE_STORAGE_BLOB_CONNECTION_STRING"`
	AccountName      string `env:"AZURE_STORAGE_BLOB_ACCOUNT_NAME"`
}

// Container is the subset of blob container operations used by the application.
type Container interface {
	// List returns the names of all the blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Download returns the content of the named blob, ErrBlobNotFound if it does not exist.
	Download(ctx context.Context, name string) ([]byte, error)
	// Upload replaces the content of the named blob.
	Upload(ctx context.Context, name string, data []byte) error
}

// Validate checks that the account can be reached with the given settings.
func (c Config) Validate(containerName string) error {
	switch {
	case len(c.ConnectionString) == 0 && len(c.AccountName) == 0:
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "one of AZURE_STORAGE_BLOB_CONNECTION_STRING or AZURE_STORAGE_BLOB_ACCOUNT_NAME must be present")
	case len(containerName) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "container name")
	}

	return nil
}

func (c Config) serviceURL() string {
	if strings.Contains(c.AccountName, ".blob.core.windows.net") {
		return c.AccountName
	}

	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.AccountName)
}

// NewContainer returns a Container bound to containerName in the configured account.
func (c Config) NewContainer(containerName string) (Container, error) {
	if err := c.Validate(containerName); err != nil {
		return nil, err
	}

	var client *azblob.Client
	if c.ConnectionString != "" {
		fromConnectionString, err := azblob.NewClientFromConnectionString(c.ConnectionString, nil)
		if err != nil {
			return nil, err
		}
		client = fromConnectionString
	} else {
		credentials, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, err
		}
		fromCredentials, err := newClientWithCredentials(c.serviceURL(), credentials)
		if err != nil {
			return nil, err
		}
		client = fromCredentials
	}

	return &containerClient{
		client: client.ServiceClient().NewContainerClient(containerName),
	}, nil
}

func newClientWithCredentials(serviceURL string, credentials azcore.TokenCredential) (*azblob.Client, error) {
	return azblob.NewClient(serviceURL, credentials, nil)
}

var _ Container = &containerClient{}

type containerClient struct {
	client *container.Client
}

func (c *containerClient) List(ctx context.Context, prefix string) ([]string, error) {
	names := make([]string, 0)
	pager := c.client.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	return names, nil
}

func (c *containerClient) Download(ctx context.Context, name string) ([]byte, error) {
	response, err := c.client.NewBlobClient(name).DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, name)
		}
		return nil, err
	}
	defer response.Body.Close()

	buffer := new(bytes.Buffer)
	if _, err := io.Copy(buffer, response.Body); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func (c *containerClient) Upload(ctx context.Context, name string, data []byte) error {
	_, err := c.client.NewBlockBlobClient(name).UploadBuffer(ctx, data, nil)
	return err
}
