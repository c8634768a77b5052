package executor

import (
	"regexp"
	"strings"

	"codeloom/internal/logging"
	"codeloom/internal/security"
	"codeloom/internal/workspace"
)

var (
	labeledFileRe  = regexp.MustCompile("(?s)### FILE: ([\\w/.-]+)\\s+```\\w*\\n(.*?)```")
	fencedBlockRe  = regexp.MustCompile("(?s)```(\\w+)\\n(.*?)```")
	commandBlockRe = regexp.MustCompile("(?s)```(?:bash|sh|shell)\\n(.*?)```")
	styleBlockRe   = regexp.MustCompile(`(?s)<style.*?>(.*?)</style>`)
	scriptBlockRe  = regexp.MustCompile(`(?s)<script.*?>(.*?)</script>`)
)

// Processor turns raw agent output into workspace files. It prefers
// explicitly labeled files and falls back to scraping fenced code blocks,
// splitting inline CSS and JS out of HTML into their own files.
type Processor struct {
	ws        *workspace.Workspace
	validator *security.Validator
}

// NewProcessor creates a processor writing into the given workspace.
func NewProcessor(ws *workspace.Workspace, validator *security.Validator) *Processor {
	return &Processor{ws: ws, validator: validator}
}

type fileOp struct {
	path    string
	content string
}

// Apply extracts files from output and writes them. Paths refused by the
// validator are skipped, not fatal; the error reports the first write
// failure, if any.
func (p *Processor) Apply(output string) ([]AppliedFile, []SkippedOp, error) {
	ops := extractLabeledFiles(output)
	if len(ops) == 0 {
		ops = extractFencedBlocks(output)
	}

	var applied []AppliedFile
	var skipped []SkippedOp
	var firstErr error

	for _, op := range ops {
		verdict := p.validator.Validate(security.Action{Kind: security.KindPath, Value: op.path})
		if !verdict.Allowed {
			skipped = append(skipped, SkippedOp{Kind: "path", Value: op.path, Reason: verdict.Reason})
			logging.Warn("file op skipped", "path", op.path, "reason", verdict.Reason)
			continue
		}

		content := security.Sanitize(op.content)
		if err := p.ws.Write(op.path, []byte(content), workspace.ModeOverwrite); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			skipped = append(skipped, SkippedOp{Kind: "path", Value: op.path, Reason: err.Error()})
			continue
		}
		applied = append(applied, AppliedFile{Path: op.path, Bytes: len(content)})
	}

	return applied, skipped, firstErr
}

// ExtractCommands pulls shell commands the agent suggests in bash fenced
// blocks, one per line, and screens each through the validator. Denied
// commands come back as skips; nothing here executes them.
func (p *Processor) ExtractCommands(output string) ([]string, []SkippedOp) {
	var commands []string
	var skipped []SkippedOp
	for _, m := range commandBlockRe.FindAllStringSubmatch(output, -1) {
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			verdict := p.validator.Validate(security.Action{Kind: security.KindCommand, Value: line})
			if !verdict.Allowed {
				skipped = append(skipped, SkippedOp{Kind: "command", Value: line, Reason: verdict.Reason})
				logging.Warn("command skipped", "command", line, "reason", verdict.Reason)
				continue
			}
			commands = append(commands, line)
		}
	}
	return commands, skipped
}

// extractLabeledFiles finds '### FILE: path' markers followed by fenced
// code blocks.
func extractLabeledFiles(output string) []fileOp {
	var ops []fileOp
	for _, m := range labeledFileRe.FindAllStringSubmatch(output, -1) {
		path := strings.TrimSpace(m[1])
		content := strings.TrimSpace(m[2])
		if path == "" || content == "" {
			continue
		}
		ops = append(ops, fileOp{path: path, content: content})
	}
	return ops
}

// extractFencedBlocks is the legacy fallback: unlabeled fenced blocks map
// to conventional file names, with HTML split into page, stylesheet and
// script.
func extractFencedBlocks(output string) []fileOp {
	var ops []fileOp
	for _, m := range fencedBlockRe.FindAllStringSubmatch(output, -1) {
		lang := strings.ToLower(m[1])
		code := strings.TrimSpace(m[2])
		if code == "" {
			continue
		}

		switch lang {
		case "html":
			ops = append(ops, splitHTML(code)...)
		case "css":
			ops = append(ops, fileOp{path: "style.css", content: code})
		case "js", "javascript":
			ops = append(ops, fileOp{path: "script.js", content: code})
		}
	}
	return ops
}

// splitHTML pulls inline <style> and <script> content into style.css and
// script.js and injects references to them into the page.
func splitHTML(html string) []fileOp {
	var cssParts, jsParts []string
	for _, m := range styleBlockRe.FindAllStringSubmatch(html, -1) {
		if block := strings.TrimSpace(m[1]); block != "" {
			cssParts = append(cssParts, block)
		}
	}
	for _, m := range scriptBlockRe.FindAllStringSubmatch(html, -1) {
		if block := strings.TrimSpace(m[1]); block != "" {
			jsParts = append(jsParts, block)
		}
	}

	html = styleBlockRe.ReplaceAllString(html, "")
	html = scriptBlockRe.ReplaceAllString(html, "")
	html = injectLinks(html, len(cssParts) > 0, len(jsParts) > 0)

	ops := []fileOp{{path: "index.html", content: strings.TrimSpace(html)}}
	if len(cssParts) > 0 {
		ops = append(ops, fileOp{path: "style.css", content: strings.Join(cssParts, "\n\n")})
	}
	if len(jsParts) > 0 {
		ops = append(ops, fileOp{path: "script.js", content: strings.Join(jsParts, "\n\n")})
	}
	return ops
}

func injectLinks(html string, hasCSS, hasJS bool) string {
	if hasCSS && strings.Contains(html, "</head>") {
		html = strings.Replace(html, "</head>",
			"    <link rel=\"stylesheet\" href=\"style.css\">\n</head>", 1)
	}
	if hasJS && strings.Contains(html, "</body>") {
		html = strings.Replace(html, "</body>",
			"    <script src=\"script.js\"></script>\n</body>", 1)
	}
	return html
}
