package servicenow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"

	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

const signatureFileName = "signature.png"

// AttachmentUploader stores a decoded signature image on a record and
// returns the attachment sys_id.
type AttachmentUploader interface {
	Upload(ctx context.Context, recordID string, image []byte) (string, error)
}

type attachmentResult struct {
	SysID string `json:"sys_id"`
}

// UploadSignature decodes a signature data URI or base64 payload and
// attaches it to the record.
func (c *Client) UploadSignature(ctx context.Context, recordID, signature string) (string, error) {
	image, _, err := visitor.DecodeSignature(signature)
	if err != nil {
		return "", err
	}
	id, err := c.uploader.Upload(ctx, recordID, image)
	if err != nil {
		return "", err
	}
	c.logger.Info("signature uploaded", "record_id", recordID, "attachment_id", id)
	return id, nil
}

// BlobUploader posts the raw image to the attachment file endpoint.
type BlobUploader struct {
	client *Client
}

// NewBlobUploader returns an uploader that sends the image as the request body.
func NewBlobUploader(c *Client) *BlobUploader {
	return &BlobUploader{client: c}
}

// Upload implements AttachmentUploader.
func (u *BlobUploader) Upload(ctx context.Context, recordID string, image []byte) (string, error) {
	c := u.client

	q := url.Values{}
	q.Set("table_name", c.table)
	q.Set("table_sys_id", recordID)
	q.Set("file_name", signatureFileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/now/attachment/file?"+q.Encode(), bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	var resp envelope[attachmentResult]
	if err := c.do(req, "upload signature", true, &resp); err != nil {
		return "", err
	}
	return resp.Result.SysID, nil
}

// FileUploader stages the image in a temporary file and sends it as a
// multipart upload bound to the signature column.
type FileUploader struct {
	client *Client
	dir    string
}

// NewFileUploader returns a multipart uploader. An empty dir uses the
// system temp directory.
func NewFileUploader(c *Client, dir string) *FileUploader {
	return &FileUploader{client: c, dir: dir}
}

// Upload implements AttachmentUploader. The temp file is removed on every
// return path.
func (u *FileUploader) Upload(ctx context.Context, recordID string, image []byte) (string, error) {
	c := u.client

	f, err := os.CreateTemp(u.dir, "signature_*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		_ = f.Close()
		if rerr := os.Remove(f.Name()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			c.logger.Warn("removing temp signature", "path", f.Name(), "error", rerr)
		}
	}()

	if _, err := f.Write(image); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding temp file: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, kv := range [][2]string{
		{"table_name", c.table},
		{"table_sys_id", recordID},
		{"field_name", c.signatureField},
	} {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("writing form field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("uploadFile", signatureFileName)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copying temp file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/now/attachment/upload", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp envelope[attachmentResult]
	if err := c.do(req, "upload signature", true, &resp); err != nil {
		return "", err
	}
	return resp.Result.SysID, nil
}
