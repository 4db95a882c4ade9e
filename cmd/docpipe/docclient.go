package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/document"
)

// docClient talks to the surrounding document CRUD service over its
// JSON API. It implements the narrow document.Service and
// document.TypeService contracts the pipeline consumes.
type docClient struct {
	baseURL string
	client  *http.Client
}

var (
	_ document.Service     = (*docClient)(nil)
	_ document.TypeService = (*docClient)(nil)
)

func newDocClient(baseURL string) *docClient {
	return &docClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *docClient) GetDocument(ctx context.Context, documentID string) (*document.Document, error) {
	var doc document.Document
	if err := c.get(ctx, "/documents/"+url.PathEscape(documentID), &doc, docpipe.ErrDocumentNotFound); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *docClient) GetDocumentType(ctx context.Context, typeID string) (*document.Type, error) {
	var dt document.Type
	if err := c.get(ctx, "/document-types/"+url.PathEscape(typeID), &dt, docpipe.ErrTypeNotFound); err != nil {
		return nil, err
	}
	return &dt, nil
}

func (c *docClient) UpdateDocument(ctx context.Context, documentID string, u document.Update) (*document.Document, error) {
	payload := map[string]any{"status": u.Status}
	if u.ExtractedData != nil {
		payload["extracted_data"] = u.ExtractedData
	}
	if u.SchemaSnapshot != nil {
		payload["schema_snapshot"] = u.SchemaSnapshot
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/documents/"+url.PathEscape(documentID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var doc document.Document
		if decErr := json.NewDecoder(resp.Body).Decode(&doc); decErr != nil {
			return nil, decErr
		}
		return &doc, nil
	case http.StatusNotFound:
		return nil, docpipe.ErrDocumentNotFound
	default:
		return nil, fmt.Errorf("document api: update %s: status %d", documentID, resp.StatusCode)
	}
}

func (c *docClient) get(ctx context.Context, path string, out any, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return notFound
	default:
		return fmt.Errorf("document api: GET %s: status %d", path, resp.StatusCode)
	}
}
