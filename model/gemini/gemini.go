// Package gemini provides a model wrapper for the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentfabric/model"
)

// Options configures the Gemini model adapter. APIKey is threaded in
// explicitly here so the fabric stays unaware of credentials; leaving it
// empty defers to the client's own environment handling.
type Options struct {
	Model       string
	Temperature float32
	APIKey      string
}

// Model wraps the Gemini generate-content API behind the generic model.Model
// interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model using the official client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Invoke implements model.Model against the Gemini generate-content API.
func (m *Model) Invoke(ctx context.Context, req model.Request) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(req.UserPrompt(), genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(m.opts.Temperature),
	}
	if req.RolePrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.RolePrompt, genai.RoleUser)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}

	return strings.TrimSpace(text), nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}
