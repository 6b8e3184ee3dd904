package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"endpoint-prober/internal/catalog"
	"endpoint-prober/internal/types"
)

// candidatePaths are tried in order when the document URL has no path
var candidatePaths = []string{
	"/swagger/v1/swagger.json",
	"/swagger.json",
	"/v1/swagger.json",
	"/api/swagger.json",
	"/api/v1/swagger.json",
	"/openapi.json",
	"/swagger/v1/swagger",
	"/swagger",
}

// SwaggerParser turns an OpenAPI document into an endpoint catalog
type SwaggerParser struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSwaggerParser creates a new instance of SwaggerParser
func NewSwaggerParser(baseURL string, logger *slog.Logger) *SwaggerParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwaggerParser{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// ParseCatalog fetches the OpenAPI documentation and builds a catalog. A URL
// ending in .json, .yaml or .yml is fetched directly; otherwise the usual
// locations under it are tried.
func (p *SwaggerParser) ParseCatalog(ctx context.Context) (*catalog.Catalog, error) {
	urls := []string{p.baseURL}
	if !hasDocumentSuffix(p.baseURL) {
		urls = urls[:0]
		for _, path := range candidatePaths {
			urls = append(urls, p.baseURL+path)
		}
	}

	var lastErr error
	for _, url := range urls {
		p.logger.Debug("trying to fetch OpenAPI documentation", "url", url)
		data, err := p.fetch(ctx, url)
		if err != nil {
			lastErr = err
			p.logger.Debug("failed to fetch OpenAPI documentation", "url", url, "error", err)
			continue
		}
		p.logger.Info("fetched OpenAPI documentation", "url", url)
		return ParseData(data)
	}
	return nil, fmt.Errorf("failed to fetch OpenAPI documentation from any known URL: %w", lastErr)
}

func hasDocumentSuffix(url string) bool {
	for _, suffix := range []string{".json", ".yaml", ".yml"} {
		if strings.HasSuffix(url, suffix) {
			return true
		}
	}
	return false
}

func (p *SwaggerParser) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ParseData builds a catalog from an OpenAPI document (JSON or YAML).
// Paths and methods are sorted so the same document gives the same catalog.
func ParseData(data []byte) (*catalog.Catalog, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if doc.Paths == nil {
		return types.NewTree[catalog.Entry](), nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	c := types.NewTree[catalog.Entry]()
	for _, path := range paths {
		operations := pathMap[path].Operations()
		methods := make([]string, 0, len(operations))
		for method := range operations {
			methods = append(methods, method)
		}
		sort.Strings(methods)

		for _, method := range methods {
			entry, err := newEntry(path, operations[method])
			if err != nil {
				return nil, err
			}
			c.Append(categoryOf(path, operations[method]), strings.ToUpper(method), entry)
		}
	}
	return c, nil
}

func newEntry(path string, op *openapi3.Operation) (catalog.Entry, error) {
	fields := map[string]any{"endpoint": path}
	if op.OperationID != "" {
		fields["operation_id"] = op.OperationID
	}
	if op.Summary != "" {
		fields["summary"] = op.Summary
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	entry := catalog.Entry{Endpoint: path, Raw: raw}
	if err := json.Unmarshal(raw, &entry.Fields); err != nil {
		return catalog.Entry{}, err
	}
	return entry, nil
}

// categoryOf uses the first tag, or else the first path segment that is not
// "api" or a version
func categoryOf(path string, op *openapi3.Operation) string {
	if len(op.Tags) > 0 && op.Tags[0] != "" {
		return op.Tags[0]
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "api" || strings.HasPrefix(segment, "{") || isVersion(segment) {
			continue
		}
		return segment
	}
	return "default"
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
