package reader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/meaningapp/meaning/internal/api"
)

// ErrDecode is returned when the extraction service answers with a body
// that is not a parse result.
var ErrDecode = errors.New("invalid parse response")

// Extracted is a decoded parse result.
type Extracted struct {
	Text string `json:"text"`
	// Pages is the physical page count, nil when the service could not tell.
	Pages *int `json:"pages"`
}

// ServiceError is a non-2xx answer from the extraction service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Fetcher loads the text of the document at a server-local path.
type Fetcher interface {
	Parse(ctx context.Context, path string) (*Extracted, error)
}

// ServiceClient is a Fetcher backed by the extraction service.
type ServiceClient struct {
	client *api.Client
}

var _ Fetcher = (*ServiceClient)(nil)

// NewServiceClient creates a ServiceClient.
func NewServiceClient(client *api.Client) *ServiceClient {
	return &ServiceClient{client: client}
}

type parseRequest struct {
	Path string `json:"path"`
}

// Parse asks the service to extract the PDF at path.
func (c *ServiceClient) Parse(ctx context.Context, path string) (*Extracted, error) {
	body, err := json.Marshal(parseRequest{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	raw, err := c.client.Raw(ctx, http.MethodPost, "/parse", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return DecodeParseResponse(raw.StatusCode, raw.Body)
}

// ParseFile uploads data as a multipart "file" field. A positive limit
// truncates the returned text on the server.
func (c *ServiceClient) ParseFile(ctx context.Context, filename string, data []byte, limit int) (*Extracted, error) {
	path := "/parse"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	raw, err := c.client.Multipart(ctx, path, "file", filename, data, nil)
	if err != nil {
		return nil, err
	}
	return DecodeParseResponse(raw.StatusCode, raw.Body)
}

const parseResponseSchema = `{
  "type": "object",
  "properties": {
    "error": { "type": "string" }
  }
}`

var compileParseSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("parse_response.json", bytes.NewReader([]byte(parseResponseSchema))); err != nil {
		return nil, fmt.Errorf("failed to load parse response schema: %w", err)
	}
	return compiler.Compile("parse_response.json")
})

// DecodeParseResponse turns a /parse status and body into a result.
// Failed statuses carry the service's error message, or
// "Parse failed: <status>" when the body has none. A text field that is
// missing or not a string decodes as "". Pages is nil unless the body
// carries a non-negative whole number.
func DecodeParseResponse(status int, body []byte) (*Extracted, error) {
	var doc any
	jsonErr := json.Unmarshal(body, &doc)

	if status < 200 || status > 299 {
		msg := ""
		if obj, ok := doc.(map[string]any); ok && jsonErr == nil {
			msg, _ = obj["error"].(string)
		}
		if msg == "" {
			msg = fmt.Sprintf("Parse failed: %d", status)
		}
		return nil, &ServiceError{StatusCode: status, Message: msg}
	}

	if jsonErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, jsonErr)
	}

	schema, err := compileParseSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	obj := doc.(map[string]any)
	out := &Extracted{}
	out.Text, _ = obj["text"].(string)
	if n, ok := obj["pages"].(float64); ok && n >= 0 && n == math.Trunc(n) && n <= math.MaxInt32 {
		pages := int(n)
		out.Pages = &pages
	}
	return out, nil
}
