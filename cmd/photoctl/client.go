package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bizphotos/external/photos"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError carries the message the server put in the error body.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func readAPIError(resp *http.Response) error {
	var body photos.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	return &apiError{Status: resp.StatusCode, Message: body.Error}
}

func contentTypeFor(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	for contentType, allowed := range photos.ImageTypes {
		if allowed == ext {
			return contentType, nil
		}
	}
	return "", fmt.Errorf("%s is not a jpg or png file", path)
}

func (c *client) upload(ctx context.Context, path string, schema photos.PhotoSchema) (photos.UploadResponse, error) {
	var created photos.UploadResponse

	contentType, err := contentTypeFor(path)
	if err != nil {
		return created, err
	}
	file, err := os.Open(path)
	if err != nil {
		return created, fmt.Errorf("os.Open(path). %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField(photos.FormBusinessID, schema.BusinessID); err != nil {
		return created, err
	}
	if schema.Caption != "" {
		if err := mw.WriteField(photos.FormCaption, schema.Caption); err != nil {
			return created, err
		}
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, photos.FormImage, filepath.Base(path)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return created, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return created, fmt.Errorf("io.Copy(part, file). %w", err)
	}
	if err := mw.Close(); err != nil {
		return created, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/photos", body)
	if err != nil {
		return created, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return created, fmt.Errorf("c.http.Do(req). %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return created, readAPIError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&created)
	return created, err
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("c.http.Do(req). %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) photo(ctx context.Context, id string) (photos.PhotoRecord, error) {
	var record photos.PhotoRecord
	err := c.getJSON(ctx, "/photos/"+url.PathEscape(id), &record)
	return record, err
}

func (c *client) list(ctx context.Context, businessID string) (photos.PhotoList, error) {
	var list photos.PhotoList
	err := c.getJSON(ctx, "/businesses/"+url.PathEscape(businessID)+"/photos", &list)
	return list, err
}

// download copies the photo bytes to w and fails on a truncated body.
func (c *client) download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+photos.MediaPath+"/"+url.PathEscape(filename), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("c.http.Do(req). %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, readAPIError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("io.Copy(w, resp.Body). %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("download truncated after %d of %d bytes", n, resp.ContentLength)
	}
	return n, nil
}
