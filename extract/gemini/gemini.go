// Package gemini implements the extraction collaborator on Vertex AI
// Gemini models. The document file is passed inline; the JSON schema is
// injected into the prompt and the model is forced into JSON output mode.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/docpipe/docpipe/extract"
)

const systemPrompt = "You are a document data-extraction engine. You will be given a scanned document and a JSON schema. Extract the structured data the schema describes from the document. Respond with a single JSON object conforming to the schema. Use null for fields that are not present in the document. Do not add fields the schema does not define."

const validatePrompt = "You are a document classifier. You will be given a scanned document and a JSON schema describing an expected document type. Answer with a JSON object {\"match\": true} if the document content plausibly matches the expected type, or {\"match\": false, \"reason\": \"<short explanation>\"} if it does not."

// DefaultModel is used when a request carries no model identifier.
const DefaultModel = "gemini-1.5-pro"

// Extractor calls Vertex AI Gemini models. It implements both
// extract.Extractor and extract.Validator.
type Extractor struct {
	client *genai.Client
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates a Gemini-backed extractor for the given GCP project and
// region.
func New(ctx context.Context, projectID, region string, opts ...Option) (*Extractor, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("gemini: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	e := &Extractor{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the underlying client.
func (e *Extractor) Close() error {
	return e.client.Close()
}

// model builds a configured generative model for one request.
func (e *Extractor) model(name, system string) *genai.GenerativeModel {
	if name == "" {
		name = DefaultModel
	}
	m := e.client.GenerativeModel(name)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	return m
}

func requestParts(req extract.Request) []genai.Part {
	return []genai.Part{
		genai.Blob{MIMEType: req.MIMEType, Data: req.File},
		genai.Text("JSON schema:\n" + string(req.Schema)),
	}
}

// Extract runs one request/response extraction cycle.
func (e *Extractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	m := e.model(req.Model, systemPrompt)

	resp, err := m.GenerateContent(ctx, requestParts(req)...)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return resultFromText(text)
}

// ExtractStream runs an extraction that yields accumulated partial text
// through onPartial. Each partial is delivered as {"delta": "..."}; the
// final object is parsed from the full accumulated response.
func (e *Extractor) ExtractStream(ctx context.Context, req extract.Request, onPartial extract.PartialFunc) (*extract.Result, error) {
	m := e.model(req.Model, systemPrompt)

	iter := m.GenerateContentStream(ctx, requestParts(req)...)

	var buf strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini: stream content: %w", err)
		}

		chunk, err := responseText(resp)
		if err != nil {
			return nil, err
		}
		buf.WriteString(chunk)

		if onPartial != nil {
			delta, mErr := json.Marshal(struct {
				Delta string `json:"delta"`
			}{Delta: chunk})
			if mErr == nil {
				onPartial(delta)
			}
		}
	}

	return resultFromText(buf.String())
}

// Validate implements the pre-extraction content check with a cheap
// classification call against the same model family.
func (e *Extractor) Validate(ctx context.Context, req extract.Request) error {
	m := e.model(req.Model, validatePrompt)

	resp, err := m.GenerateContent(ctx, requestParts(req)...)
	if err != nil {
		return fmt.Errorf("gemini: validate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return err
	}

	var verdict struct {
		Match  bool   `json:"match"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return fmt.Errorf("gemini: parse validation verdict: %w", err)
	}
	if !verdict.Match {
		reason := verdict.Reason
		if reason == "" {
			reason = "document content does not match the expected type"
		}
		return extract.Reject(reason)
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	var buf strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			buf.WriteString(string(text))
		}
	}
	return buf.String(), nil
}

// resultFromText parses the model output as a JSON object. Model output
// that is not valid JSON is a malformed collaborator response — an
// infrastructure failure, eligible for retry.
func resultFromText(text string) (*extract.Result, error) {
	trimmed := strings.TrimSpace(text)
	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("gemini: response is not valid JSON")
	}
	return &extract.Result{Data: json.RawMessage(trimmed)}, nil
}
