package client

import "strings"

// ExtractJSON pulls the first JSON object or array out of a model response,
// tolerating markdown code fences and prose around the payload. Returns ""
// when no JSON-looking span is present.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip a markdown fence if the whole payload is fenced.
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	start := objStart
	open, close := byte('{'), byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == open:
			depth++
		case !inString && ch == close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
