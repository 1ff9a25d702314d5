package jira

import (
	"strings"

	"github.com/thebtf/ticketsim/internal/source"
)

// jqlTextReserved are characters the Lucene text operator (~) rejects.
const jqlTextReserved = `+-&|!(){}[]^~*?\:"'`

// BuildJQL translates a structured query into JQL.
func BuildJQL(q source.Query) string {
	var clauses []string
	if c := inClause("project", q.Projects); c != "" {
		clauses = append(clauses, c)
	}
	if c := inClause("issuetype", q.IssueTypes); c != "" {
		clauses = append(clauses, c)
	}
	if c := inClause("component", q.Components); c != "" {
		clauses = append(clauses, c)
	}
	if c := inClause("labels", q.Labels); c != "" {
		clauses = append(clauses, c)
	}
	if text := sanitizeText(q.Text); text != "" {
		t := quote(text)
		clauses = append(clauses, "(summary ~ "+t+" OR description ~ "+t+")")
	}

	jql := strings.Join(clauses, " AND ")
	if jql == "" {
		return "ORDER BY created DESC"
	}
	return jql + " ORDER BY created DESC"
}

func inClause(field string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			quoted = append(quoted, quote(v))
		}
	}
	if len(quoted) == 0 {
		return ""
	}
	return field + " in (" + strings.Join(quoted, ", ") + ")"
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// sanitizeText replaces reserved characters with spaces and collapses whitespace.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(jqlTextReserved, r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
