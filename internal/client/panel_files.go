package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

func filesPath(subscriptionID, action string) string {
	return subscriptionPath(subscriptionID) + "/files/" + action
}

// ListFiles lists one directory of the server's filesystem.
func (c *PanelClient) ListFiles(ctx context.Context, subscriptionID, directory string) ([]models.FileObject, error) {
	var result struct {
		Files []models.FileObject `json:"files"`
	}
	path := filesPath(subscriptionID, "list") + "?directory=" + url.QueryEscape(directory)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if result.Files == nil {
		result.Files = []models.FileObject{}
	}
	return result.Files, nil
}

// FileContents returns the raw contents of a file.
func (c *PanelClient) FileContents(ctx context.Context, subscriptionID, file string) (string, error) {
	path := filesPath(subscriptionID, "contents") + "?file=" + url.QueryEscape(file)
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// WriteFile replaces the contents of a file.
func (c *PanelClient) WriteFile(ctx context.Context, subscriptionID, file, content string) error {
	path := filesPath(subscriptionID, "write") + "?file=" + url.QueryEscape(file)
	_, err := c.do(ctx, http.MethodPost, path, strings.NewReader(content), "text/plain")
	return err
}

// RenameFiles renames entries relative to root.
func (c *PanelClient) RenameFiles(ctx context.Context, subscriptionID, root string, files []models.RenameEntry) error {
	req := map[string]interface{}{"root": root, "files": files}
	return c.doJSON(ctx, http.MethodPut, filesPath(subscriptionID, "rename"), req, nil)
}

// DeleteFiles deletes entries relative to root.
func (c *PanelClient) DeleteFiles(ctx context.Context, subscriptionID, root string, files []string) error {
	req := map[string]interface{}{"root": root, "files": files}
	return c.doJSON(ctx, http.MethodPost, filesPath(subscriptionID, "delete"), req, nil)
}

// CreateFolder creates a directory inside root.
func (c *PanelClient) CreateFolder(ctx context.Context, subscriptionID, root, name string) error {
	req := map[string]string{"root": root, "name": name}
	return c.doJSON(ctx, http.MethodPost, filesPath(subscriptionID, "create-folder"), req, nil)
}

// CompressFiles archives entries of root and returns the new archive.
func (c *PanelClient) CompressFiles(ctx context.Context, subscriptionID, root string, files []string) (*models.FileObject, error) {
	req := map[string]interface{}{"root": root, "files": files}
	var result models.FileObject
	if err := c.doJSON(ctx, http.MethodPost, filesPath(subscriptionID, "compress"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DecompressFile extracts an archive in place.
func (c *PanelClient) DecompressFile(ctx context.Context, subscriptionID, root, file string) error {
	req := map[string]string{"root": root, "file": file}
	return c.doJSON(ctx, http.MethodPost, filesPath(subscriptionID, "decompress"), req, nil)
}

// FileDownloadURL returns a signed URL to download a file.
func (c *PanelClient) FileDownloadURL(ctx context.Context, subscriptionID, file string) (string, error) {
	var result models.SignedURL
	path := filesPath(subscriptionID, "download") + "?file=" + url.QueryEscape(file)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// FileUploadURL returns a signed URL the browser uploads to directly.
func (c *PanelClient) FileUploadURL(ctx context.Context, subscriptionID, directory string) (string, error) {
	var result models.SignedURL
	path := filesPath(subscriptionID, "upload") + "?directory=" + url.QueryEscape(directory)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}
