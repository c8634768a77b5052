package executor

import (
	"strings"
	"testing"

	"codeloom/internal/security"
	"codeloom/internal/workspace"
)

func newTestProcessor(t *testing.T) (*Processor, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	return NewProcessor(ws, security.NewValidator(ws.Root())), ws
}

func TestApplyLabeledFiles(t *testing.T) {
	p, ws := newTestProcessor(t)

	output := "Here is the implementation.\n\n" +
		"### FILE: src/app.js\n```javascript\nconsole.log('app');\n```\n\n" +
		"### FILE: src/util.js\n```javascript\nexport const x = 1;\n```\n"

	applied, skipped, err := p.Apply(output)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %+v, want none", skipped)
	}
	if len(applied) != 2 {
		t.Fatalf("applied %d files, want 2", len(applied))
	}

	data, err := ws.Read("src/app.js")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "console.log('app');" {
		t.Errorf("src/app.js = %q", data)
	}
}

func TestApplySplitsInlineHTML(t *testing.T) {
	p, ws := newTestProcessor(t)

	output := "```html\n<html>\n<head>\n<style>body { margin: 0; }</style>\n</head>\n" +
		"<body>\n<h1>Hi</h1>\n<script>alert(1);</script>\n</body>\n</html>\n```"

	applied, _, err := p.Apply(output)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(applied) != 3 {
		t.Fatalf("applied %d files, want 3 (html, css, js)", len(applied))
	}

	html, err := ws.Read("index.html")
	if err != nil {
		t.Fatalf("Read index.html: %v", err)
	}
	page := string(html)
	if strings.Contains(page, "<style") || strings.Contains(page, "<script>alert") {
		t.Errorf("inline blocks not stripped from page:\n%s", page)
	}
	if !strings.Contains(page, `<link rel="stylesheet" href="style.css">`) {
		t.Errorf("stylesheet link not injected:\n%s", page)
	}
	if !strings.Contains(page, `<script src="script.js"></script>`) {
		t.Errorf("script reference not injected:\n%s", page)
	}

	css, err := ws.Read("style.css")
	if err != nil || !strings.Contains(string(css), "margin: 0") {
		t.Errorf("style.css = %q, err %v", css, err)
	}
	js, err := ws.Read("script.js")
	if err != nil || !strings.Contains(string(js), "alert(1)") {
		t.Errorf("script.js = %q, err %v", js, err)
	}
}

func TestApplySkipsDeniedPaths(t *testing.T) {
	p, ws := newTestProcessor(t)

	output := "### FILE: ../../etc/cron.d/evil\n```\n* * * * * root do-bad-things\n```\n\n" +
		"### FILE: safe.txt\n```\nhello\n```\n"

	applied, skipped, err := p.Apply(output)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(applied) != 1 || applied[0].Path != "safe.txt" {
		t.Errorf("applied = %+v, want only safe.txt", applied)
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped = %+v, want one entry", skipped)
	}
	if !ws.Exists("safe.txt") {
		t.Error("safe.txt not written")
	}
}

func TestApplyPrefersLabeledOverFenced(t *testing.T) {
	p, ws := newTestProcessor(t)

	output := "### FILE: main.py\n```python\nprint('labeled')\n```\n\n" +
		"```css\nbody {}\n```\n"

	applied, _, err := p.Apply(output)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(applied) != 1 || applied[0].Path != "main.py" {
		t.Errorf("applied = %+v, want only main.py", applied)
	}
	if ws.Exists("style.css") {
		t.Error("fallback scraping ran despite labeled files")
	}
}

func TestExtractCommands(t *testing.T) {
	p, _ := newTestProcessor(t)

	output := "Install and run:\n\n" +
		"```bash\n# dependencies\nnpm install\nrm -rf /\nnode server.js\n```\n"

	commands, skipped := p.ExtractCommands(output)
	want := []string{"npm install", "node server.js"}
	if len(commands) != len(want) {
		t.Fatalf("commands = %v, want %v", commands, want)
	}
	for i, cmd := range want {
		if commands[i] != cmd {
			t.Errorf("commands[%d] = %q, want %q", i, commands[i], cmd)
		}
	}
	if len(skipped) != 1 || skipped[0].Value != "rm -rf /" || skipped[0].Kind != "command" {
		t.Errorf("skipped = %+v, want the destructive command", skipped)
	}
}

func TestExtractCommandsIgnoresNonShellBlocks(t *testing.T) {
	p, _ := newTestProcessor(t)

	commands, skipped := p.ExtractCommands("```python\nprint('hi')\n```")
	if len(commands) != 0 || len(skipped) != 0 {
		t.Errorf("ExtractCommands = (%v, %v), want empty", commands, skipped)
	}
}

func TestApplyNoCode(t *testing.T) {
	p, _ := newTestProcessor(t)

	applied, skipped, err := p.Apply("Just prose, no code at all.")
	if err != nil || len(applied) != 0 || len(skipped) != 0 {
		t.Errorf("Apply(prose) = (%v, %v, %v), want empty", applied, skipped, err)
	}
}
