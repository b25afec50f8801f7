package gemini

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/answer-engine/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client is a thin HTTP client for the Gemini generateContent family of
// endpoints: plain generation, JSON-schema constrained generation, generation
// with the google_search tool, SSE streaming, and embeddings.
type Client struct {
	baseURL    string
	apiKey     string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	BaseURL            string
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(apiKey, genModel, embedModel string) *Client {
	return NewWithOptions(apiKey, genModel, embedModel, Options{})
}

func NewWithOptions(apiKey, genModel, embedModel string, options Options) *Client {
	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 120 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: requestTimeout},
		executor:   options.ResilienceExecutor,
	}
}

type generateRequest struct {
	Contents          []content       `json:"contents"`
	SystemInstruction *content        `json:"systemInstruction,omitempty"`
	Tools             []tool          `json:"tools,omitempty"`
	GenerationConfig  *generateConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// text concatenates the first candidate's parts without trimming; streaming
// chunks rely on boundary whitespace being preserved.
func (r generateResponse) text() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		break
	}
	return b.String()
}

func userPrompt(prompt string) []content {
	return []content{{Role: "user", Parts: []part{{Text: prompt}}}}
}

func systemInstruction(text string) *content {
	if text == "" {
		return nil
	}
	return &content{Parts: []part{{Text: text}}}
}

func (c *Client) generateText(ctx context.Context, system, prompt string) (string, error) {
	return c.generate(ctx, "generate", generateRequest{
		Contents:          userPrompt(prompt),
		SystemInstruction: systemInstruction(system),
	})
}

func (c *Client) generateJSON(ctx context.Context, system, prompt string, schema map[string]any) (string, error) {
	return c.generate(ctx, "generate_json", generateRequest{
		Contents:          userPrompt(prompt),
		SystemInstruction: systemInstruction(system),
		GenerationConfig: &generateConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	})
}

func (c *Client) generateWithSearch(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "generate_web_search", generateRequest{
		Contents: userPrompt(prompt),
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	})
}

func (c *Client) generate(ctx context.Context, operation string, reqBody generateRequest) (string, error) {
	var response generateResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, generatePath(c.genModel), reqBody, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "gemini."+operation, call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return strings.TrimSpace(response.text()), nil
}

// streamGenerate streams the generated answer; each text fragment is passed to
// onChunk in arrival order and the concatenated text is returned. Streaming is
// not retried: a broken stream surfaces as an error to the caller.
func (c *Client) streamGenerate(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	text, err := c.postStream(ctx, streamPath(c.genModel), generateRequest{
		Contents: userPrompt(prompt),
	}, onChunk, "stream_generate")
	if err != nil {
		return "", wrapTemporaryIfNeeded("stream_generate", err)
	}
	return text, nil
}

func generatePath(model string) string {
	return "/v1beta/models/" + model + ":generateContent"
}

func streamPath(model string) string {
	return "/v1beta/models/" + model + ":streamGenerateContent?alt=sse"
}

func embedPath(model string) string {
	return "/v1beta/models/" + model + ":batchEmbedContents"
}
