package jira

import (
	"strings"

	"github.com/goccy/go-json"
)

// adfNode is one node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// adfBlocks are node types rendered on their own line.
var adfBlocks = map[string]bool{
	"paragraph":   true,
	"heading":     true,
	"listItem":    true,
	"codeBlock":   true,
	"blockquote":  true,
	"tableRow":    true,
	"panel":       true,
	"rule":        true,
	"mediaSingle": true,
}

// DescriptionToPlainText extracts plain text from Jira's ADF (Atlassian Document Format).
// Jira v3 API returns descriptions as ADF JSON; older fields may be plain strings.
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		// Not ADF - try plain string
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var lines []string
	var cur strings.Builder
	var walk func(n adfNode)
	walk = func(n adfNode) {
		switch n.Type {
		case "text":
			cur.WriteString(n.Text)
		case "hardBreak":
			cur.WriteString("\n")
		case "mention", "emoji":
			cur.WriteString(n.Text)
		}
		for _, child := range n.Content {
			walk(child)
		}
		if adfBlocks[n.Type] {
			if line := strings.TrimSpace(cur.String()); line != "" {
				lines = append(lines, line)
			}
			cur.Reset()
		}
	}
	walk(doc)
	if line := strings.TrimSpace(cur.String()); line != "" {
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
