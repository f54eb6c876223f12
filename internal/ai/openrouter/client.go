package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/sonnkraft/funnel-backend/internal/config"
	"github.com/sonnkraft/funnel-backend/internal/types"
)

// ErrNoContent is returned when the provider answers with an empty choice list.
var ErrNoContent = errors.New("openrouter: no content in response")

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to an OpenAI-compatible chat-completion endpoint. The default
// base URL points at OpenRouter, but any compatible provider works.
type Client struct {
	api         *openai.Client
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	retry       retrier
	logger      *logrus.Logger
}

// NewClient creates a new provider client from configuration.
func NewClient(cfg config.AIConfig, logger *logrus.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = baseURL
	apiCfg.HTTPClient = httpClient

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		httpClient:  httpClient,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		retry:       newRetrier(cfg.MaxAttempts, cfg.InitialDelay),
		logger:      logger,
	}
}

// completionRequest and completionResponse are hand-typed because go-openai
// does not model the url_citation annotations OpenRouter attaches to grounded
// answers. Only GenerateText goes through this raw path; all other calls use
// the go-openai client.
type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content     string       `json:"content"`
			Annotations []annotation `json:"annotations"`
		} `json:"message"`
	} `json:"choices"`
}

type annotation struct {
	Type        string       `json:"type"`
	URLCitation *urlCitation `json:"url_citation"`
}

type urlCitation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// GenerateText sends a plain prompt and returns the completion text plus any
// grounding sources the provider attached. Providers without citation support
// yield an empty source list, never an error.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, []types.Source, error) {
	var text string
	var sources []types.Source

	err := c.retry.do(ctx, func() error {
		resp, err := c.complete(ctx, prompt)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrNoContent
		}
		text = resp.Choices[0].Message.Content
		sources = sourcesFromAnnotations(resp.Choices[0].Message.Annotations)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return text, sources, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (*completionResponse, error) {
	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: []completionMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}

// GenerateStream streams a completion token-by-token. onDelta is invoked for
// every non-empty chunk in arrival order; returning an error from it aborts
// the stream. Only opening the stream is retried: once the first delta has
// been delivered a failure must surface instead of replaying chunks.
func (c *Client) GenerateStream(ctx context.Context, prompt string, onDelta func(chunk string) error) (string, error) {
	var stream *openai.ChatCompletionStream

	err := c.retry.do(ctx, func() error {
		s, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Stream: true,
		})
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full, nil
		}
		if err != nil {
			return full, fmt.Errorf("receive stream chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full += delta
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full, err
			}
		}
	}
}

// GenerateStructured requests strict JSON output against the given schema and
// unmarshals the result into out.
func (c *Client) GenerateStructured(ctx context.Context, prompt, schemaName string, schema json.RawMessage, out any) error {
	return c.retry.do(ctx, func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   schemaName,
					Schema: schema,
					Strict: true,
				},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrNoContent
		}
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
			return fmt.Errorf("unmarshal structured response: %w", err)
		}
		return nil
	})
}

// DescribeImage sends an image alongside a prompt to the vision model and
// unmarshals the strict-JSON answer into out. The image is passed inline as a
// data URL, which OpenRouter accepts for all vision-capable models.
func (c *Client) DescribeImage(ctx context.Context, prompt string, image []byte, schemaName string, schema json.RawMessage, out any) error {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	return c.retry.do(ctx, func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.visionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: prompt},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailAuto,
							},
						},
					},
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   schemaName,
					Schema: schema,
					Strict: true,
				},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrNoContent
		}
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
			return fmt.Errorf("unmarshal vision response: %w", err)
		}
		return nil
	})
}

// sourcesFromAnnotations extracts {uri, title} pairs from url_citation
// annotations. Missing or foreign annotation shapes degrade to an empty list.
func sourcesFromAnnotations(annotations []annotation) []types.Source {
	sources := []types.Source{}
	for _, a := range annotations {
		if a.Type != "url_citation" || a.URLCitation == nil {
			continue
		}
		sources = append(sources, types.Source{
			URI:   a.URLCitation.URL,
			Title: a.URLCitation.Title,
		})
	}
	return sources
}
