// Package catalog reads the endpoint catalog and writes trees of the same
// shape back out. JSON object order is significant: it is the test order.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"endpoint-prober/internal/types"
)

// Entry is one catalog descriptor
type Entry struct {
	// Endpoint is the path template, empty when Malformed
	Endpoint string
	// Malformed is set when the endpoint member is missing, empty or not a string
	Malformed bool
	// Fields holds every member of the entry object
	Fields map[string]json.RawMessage
	// Raw is the entry as it appeared in the file
	Raw json.RawMessage
}

// Catalog maps category -> method -> ordered entries
type Catalog = types.Tree[Entry]

// Load reads a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document, keeping document order
func Parse(data []byte) (*Catalog, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("top level must be an object of categories")
	}

	c := types.NewTree[Entry]()
	var parseErr error
	root.ForEach(func(category, methods gjson.Result) bool {
		if !methods.IsObject() {
			parseErr = fmt.Errorf("category %q must map methods to lists", category.String())
			return false
		}
		cat := c.Category(category.String())
		methods.ForEach(func(method, list gjson.Result) bool {
			if !list.IsArray() {
				parseErr = fmt.Errorf("%s %s must be a list", category.String(), method.String())
				return false
			}
			group := cat.Group(method.String())
			list.ForEach(func(_, item gjson.Result) bool {
				group.Items = append(group.Items, parseEntry(item))
				return true
			})
			return true
		})
		return parseErr == nil
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return c, nil
}

func parseEntry(item gjson.Result) Entry {
	e := Entry{Raw: json.RawMessage(item.Raw)}
	if !item.IsObject() {
		e.Malformed = true
		return e
	}
	if err := json.Unmarshal([]byte(item.Raw), &e.Fields); err != nil {
		e.Malformed = true
		return e
	}
	endpoint := item.Get("endpoint")
	if endpoint.Type != gjson.String || endpoint.Str == "" {
		e.Malformed = true
		return e
	}
	e.Endpoint = endpoint.Str
	return e
}

// MarshalJSON writes the entry as it was read
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(map[string]string{"endpoint": e.Endpoint})
}

// Malformed counts malformed entries
func Malformed(c *Catalog) int {
	n := 0
	c.Walk(func(_, _ string, e Entry) {
		if e.Malformed {
			n++
		}
	})
	return n
}

// TemplateField is the entry member holding the template a resolved
// endpoint was expanded from
const TemplateField = "template"

var placeholderPattern = regexp.MustCompile(`\{[^{}]+\}`)

// Template returns the template the entry was resolved from, or its
// endpoint when it carries none
func (e Entry) Template() string {
	if raw, ok := e.Fields[TemplateField]; ok {
		var template string
		if err := json.Unmarshal(raw, &template); err == nil && template != "" {
			return template
		}
	}
	return e.Endpoint
}

// WithTemplate returns fields plus the template member. fields is not
// modified. When template equals endpoint, fields is returned as is.
func WithTemplate(fields map[string]json.RawMessage, template, endpoint string) map[string]json.RawMessage {
	if template == "" || template == endpoint {
		return fields
	}
	raw, err := marshal(template)
	if err != nil {
		return fields
	}
	out := make(map[string]json.RawMessage, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[TemplateField] = raw
	return out
}

// templateMatcher matches concrete paths a template could have expanded to
func templateMatcher(template string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	last := 0
	for _, loc := range placeholderPattern.FindAllStringIndex(template, -1) {
		b.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		b.WriteString(`[^/]+`)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(template[last:]))
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}

// Merge appends to dst every well-formed entry of src not already in dst,
// keeping existing entries untouched. An entry is already there when dst
// has the same category, method and template, or, for entries written
// without a template member, an endpoint the src template expands to.
// It returns the number of entries added.
func Merge(dst, src *Catalog) int {
	known := make(map[string]bool)
	endpoints := make(map[string][]string)
	dst.Walk(func(category, method string, e Entry) {
		if e.Malformed {
			return
		}
		group := category + "\x00" + method
		known[group+"\x00"+e.Template()] = true
		endpoints[group] = append(endpoints[group], e.Endpoint)
	})

	added := 0
	src.Walk(func(category, method string, e Entry) {
		group := category + "\x00" + method
		key := group + "\x00" + e.Template()
		if e.Malformed || known[key] {
			return
		}
		if placeholderPattern.MatchString(e.Endpoint) {
			matcher := templateMatcher(e.Endpoint)
			for _, endpoint := range endpoints[group] {
				if matcher.MatchString(endpoint) {
					return
				}
			}
		}
		known[key] = true
		dst.Append(category, method, e)
		added++
	})
	return added
}

// Encode writes a tree as an indented JSON document in tree order. Items are
// encoded with encoding/json.
func Encode[T any](tree *types.Tree[T]) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range tree.Categories() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, c.Name); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, g := range c.Methods {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, g.Method); err != nil {
				return nil, err
			}
			buf.WriteByte('[')
			for k, item := range g.Items {
				if k > 0 {
					buf.WriteByte(',')
				}
				data, err := marshal(item)
				if err != nil {
					return nil, fmt.Errorf("failed to encode %s %s entry %d: %w", c.Name, g.Method, k, err)
				}
				buf.Write(data)
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return nil, fmt.Errorf("failed to indent document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// marshal is json.Marshal without HTML escaping, so paths with & < > stay readable
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	data, err := marshal(key)
	if err != nil {
		return err
	}
	buf.Write(data)
	buf.WriteByte(':')
	return nil
}
