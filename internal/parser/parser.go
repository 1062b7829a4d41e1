// Package parser turns a raw Markdown note into plain prose plus the tags the
// author attached to it.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe  = regexp.MustCompile(`\[\[(.*?)\]\]`)
	mdLinkRe    = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	tagRe       = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	headingRe   = regexp.MustCompile(`^#{1,6}\s+`)
	listRe      = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	emphasisRe  = regexp.MustCompile("[*_`~]{1,3}")
	blockquoteR = regexp.MustCompile(`^>\s?`)
)

// Result holds the output of parsing a note.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Tags        []string
	// Lines is the body as plain prose, one entry per non-empty source line.
	Lines []string
}

// Parse extracts frontmatter, tags and plain prose from raw Markdown bytes.
// Invalid frontmatter is treated as body text.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	tags := extractTags(body, fm)
	body = tagRe.ReplaceAllStringFunc(body, func(m string) string {
		// Keep the leading whitespace, drop the tag itself.
		if i := strings.Index(m, "#"); i > 0 {
			return m[:i]
		}
		return ""
	})

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        tags,
		Lines:       plainLines(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractTags collects #tags from body and from frontmatter "tags" field.
// Tags are lower-cased.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// plainLines strips Markdown markup and returns non-empty prose lines.
// Fenced code blocks are dropped entirely.
func plainLines(body string) []string {
	var out []string
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" {
			continue
		}
		trimmed = blockquoteR.ReplaceAllString(trimmed, "")
		trimmed = headingRe.ReplaceAllString(trimmed, "")
		trimmed = listRe.ReplaceAllString(trimmed, "")
		trimmed = unwrapLinks(trimmed)
		trimmed = emphasisRe.ReplaceAllString(trimmed, "")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// unwrapLinks replaces [[target|alias]] and [text](url) with their visible text.
func unwrapLinks(s string) string {
	s = wikilinkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := wikilinkRe.FindStringSubmatch(m)[1]
		if i := strings.Index(inner, "|"); i >= 0 {
			return strings.TrimSpace(inner[i+1:])
		}
		return strings.TrimSpace(inner)
	})
	return mdLinkRe.ReplaceAllString(s, "$1")
}
