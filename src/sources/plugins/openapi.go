// Package plugins turns OpenAPI plugin specs into declarative HTTP tools.
package plugins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

var httpMethods = map[string]bool{"get": true, "post": true, "put": true, "delete": true, "patch": true}

// sanitizeName converts a path into a safe identifier: braces stripped, separators and
// invalid characters turned into single underscores.
func sanitizeName(p string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r == '{' || r == '}':
			return -1
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			return r
		}
		return '_'
	}, p)
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_")
	if out == "" {
		return "root"
	}
	return out
}

// LoadSpec reads a spec from an http(s) URL or a local file and decodes it as JSON,
// falling back to YAML.
func LoadSpec(ctx context.Context, client *http.Client, location string) (map[string]interface{}, error) {
	var raw []byte
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http GET failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected HTTP status: %s", resp.Status)
		}
		if raw, err = io.ReadAll(resp.Body); err != nil {
			return nil, fmt.Errorf("reading body failed: %w", err)
		}
	} else {
		var err error
		if raw, err = os.ReadFile(location); err != nil {
			return nil, err
		}
	}
	return DecodeSpec(raw)
}

// DecodeSpec parses JSON or YAML into a plain map tree.
func DecodeSpec(raw []byte) (map[string]interface{}, error) {
	var spec map[string]interface{}
	jsonErr := json.Unmarshal(raw, &spec)
	if jsonErr == nil {
		return spec, nil
	}
	var y interface{}
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return nil, fmt.Errorf("failed to parse as JSON (%v) or YAML (%v)", jsonErr, err)
	}
	norm, err := json.Normalize(y)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize YAML content: %w", err)
	}
	m, ok := norm.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("spec root is %T, want an object", norm)
	}
	return m, nil
}

// Converter turns one decoded spec into HTTP tools.
type Converter struct {
	spec       map[string]interface{}
	specURL    string
	source     string
	nameCounts map[string]int
}

// NewConverter binds spec to a source name. specURL resolves relative or missing
// server URLs.
func NewConverter(spec map[string]interface{}, specURL, source string) *Converter {
	return &Converter{spec: spec, specURL: specURL, source: source, nameCounts: map[string]int{}}
}

// BaseURL picks the first server URL, falling back to the spec's own origin.
func (c *Converter) BaseURL() string {
	if servers, ok := c.spec["servers"].([]interface{}); ok && len(servers) > 0 {
		if srv0, ok := servers[0].(map[string]interface{}); ok {
			if u, _ := srv0["url"].(string); u != "" {
				if strings.HasPrefix(u, "/") && c.specURL != "" {
					if pu, err := url.Parse(c.specURL); err == nil && pu.Host != "" {
						return fmt.Sprintf("%s://%s%s", pu.Scheme, pu.Host, strings.TrimRight(u, "/"))
					}
				}
				return strings.TrimRight(u, "/")
			}
		}
	}
	if host, _ := c.spec["host"].(string); host != "" {
		basePath, _ := c.spec["basePath"].(string)
		return "https://" + host + strings.TrimRight(basePath, "/")
	}
	if pu, err := url.Parse(c.specURL); err == nil && pu.Host != "" {
		return fmt.Sprintf("%s://%s", pu.Scheme, pu.Host)
	}
	return ""
}

// Convert returns the spec's operations in path then method order.
func (c *Converter) Convert() []tools.Tool {
	base := c.BaseURL()
	paths, _ := c.spec["paths"].(map[string]interface{})

	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var out []tools.Tool
	for _, p := range pathKeys {
		item, ok := paths[p].(map[string]interface{})
		if !ok {
			continue
		}
		methods := make([]string, 0, len(item))
		for m := range item {
			if httpMethods[strings.ToLower(m)] {
				methods = append(methods, m)
			}
		}
		sort.Strings(methods)
		for _, m := range methods {
			op, ok := item[m].(map[string]interface{})
			if !ok {
				continue
			}
			out = append(out, c.createTool(p, m, op, base, item["parameters"]))
		}
	}
	return out
}

func (c *Converter) createTool(path, method string, op map[string]interface{}, base string, shared interface{}) tools.Tool {
	name, _ := op["operationId"].(string)
	if name == "" {
		name = fmt.Sprintf("%s_%s", strings.ToLower(method), sanitizeName(path))
	}
	if n := c.nameCounts[name]; n > 0 {
		c.nameCounts[name] = n + 1
		name = fmt.Sprintf("%s_%d", name, n+1)
	} else {
		c.nameCounts[name] = 1
	}

	desc, _ := op["description"].(string)
	if desc == "" {
		desc, _ = op["summary"].(string)
	}

	return tools.NewHTTPTool(c.source, name, desc, c.extractInputs(op, shared), tools.Execution{
		BaseURL:    base,
		Path:       path,
		HTTPMethod: strings.ToUpper(method),
	})
}

// extractInputs flattens parameters and the JSON request body into one object schema;
// the executor places each value in the path, query or body.
func (c *Converter) extractInputs(op map[string]interface{}, shared interface{}) tools.Schema {
	props := map[string]interface{}{}
	var required []string
	seen := map[string]bool{}

	addParams := func(raw interface{}) {
		params, _ := raw.([]interface{})
		for _, rp := range params {
			param, ok := c.resolveSchema(rp).(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := param["name"].(string)
			in, _ := param["in"].(string)
			if name == "" || in == "header" || in == "cookie" {
				continue
			}
			schema, _ := param["schema"].(map[string]interface{})
			if schema == nil {
				schema = map[string]interface{}{"type": "string"}
			}
			if d, _ := param["description"].(string); d != "" {
				schema = withDescription(schema, d)
			}
			props[name] = schema
			if req, _ := param["required"].(bool); (req || in == "path") && !seen[name] {
				required = append(required, name)
				seen[name] = true
			}
		}
	}
	addParams(shared)
	addParams(op["parameters"])

	if rb, ok := c.resolveSchema(op["requestBody"]).(map[string]interface{}); ok {
		content, _ := rb["content"].(map[string]interface{})
		if mt, ok := content["application/json"].(map[string]interface{}); ok {
			if schema, ok := mt["schema"].(map[string]interface{}); ok {
				bodyProps, _ := schema["properties"].(map[string]interface{})
				for k, v := range bodyProps {
					props[k] = v
				}
				if req, ok := schema["required"].([]interface{}); ok {
					for _, r := range req {
						if s, ok := r.(string); ok && !seen[s] {
							required = append(required, s)
							seen[s] = true
						}
					}
				}
			}
		}
	}
	return tools.ObjectSchema(props, required...)
}

func withDescription(schema map[string]interface{}, desc string) map[string]interface{} {
	out := make(map[string]interface{}, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	if _, has := out["description"]; !has {
		out["description"] = desc
	}
	return out
}

func (c *Converter) resolveRef(ref string) (map[string]interface{}, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("unsupported external ref %q", ref)
	}
	node := c.spec
	for _, p := range strings.Split(ref[2:], "/") {
		next, ok := node[p].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("ref %q not found", ref)
		}
		node = next
	}
	return node, nil
}

// resolveSchema inlines {"$ref": ...} nodes, stopping at cycles.
func (c *Converter) resolveSchema(schema interface{}) interface{} {
	return c.resolve(schema, map[string]bool{})
}

func (c *Converter) resolve(schema interface{}, visiting map[string]bool) interface{} {
	switch val := schema.(type) {
	case map[string]interface{}:
		if ref, has := val["$ref"].(string); has {
			if visiting[ref] {
				return map[string]interface{}{"type": "object"}
			}
			sub, err := c.resolveRef(ref)
			if err != nil {
				return val
			}
			visiting[ref] = true
			defer delete(visiting, ref)
			return c.resolve(sub, visiting)
		}
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = c.resolve(v, visiting)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = c.resolve(item, visiting)
		}
		return out
	default:
		return val
	}
}
