package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"codeloom/internal/client"
	"codeloom/internal/logging"
)

// Completer is the slice of the model gateway the ingester needs. A nil
// completer makes the ingester fall back to regex extraction only.
type Completer interface {
	Complete(ctx context.Context, backendID, prompt string, opts client.Options) (string, error)
}

// Ingester walks source trees and turns files into graph nodes and edges.
// Extraction first asks a model for a structured summary and falls back to
// language-aware regexes when the model is unavailable or returns garbage.
type Ingester struct {
	store        *Store
	completer    Completer
	backendID    string
	opts         client.Options
	ignore       []string
	maxFileBytes int64
}

// NewIngester creates an ingester over the given store. ignore holds
// doublestar glob patterns matched against workspace-relative paths.
func NewIngester(store *Store, completer Completer, backendID string, opts client.Options, ignore []string, maxFileBytes int64) *Ingester {
	if maxFileBytes <= 0 {
		maxFileBytes = 256 * 1024
	}
	return &Ingester{
		store:        store,
		completer:    completer,
		backendID:    backendID,
		opts:         opts,
		ignore:       ignore,
		maxFileBytes: maxFileBytes,
	}
}

// IngestDir walks root and ingests every recognized source file. Files that
// fail to ingest are logged and skipped.
func (ing *Ingester) IngestDir(ctx context.Context, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && ing.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ing.ignored(rel) || detectLanguage(path) == "" {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil && info.Size() > ing.maxFileBytes {
			logging.Debug("skipping oversized file", "path", rel, "bytes", info.Size())
			return nil
		}

		if ingErr := ing.IngestFile(ctx, root, rel); ingErr != nil {
			logging.Warn("file ingest failed", "path", rel, "error", ingErr)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	if err := ing.store.Save(); err != nil {
		return count, fmt.Errorf("saving graph: %w", err)
	}
	nodes, edges := ing.store.Stats()
	logging.Info("ingest complete", "files", count, "nodes", nodes, "edges", edges)
	return count, nil
}

// IngestFile (re-)ingests a single file, replacing its previous nodes.
func (ing *Ingester) IngestFile(ctx context.Context, root, rel string) error {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}

	lang := detectLanguage(rel)
	content := string(data)

	ext := ing.extract(ctx, rel, lang, content)
	nodes, edges := ing.materialize(rel, ext)
	ing.store.ReplaceFile(rel, nodes, edges)
	return nil
}

func (ing *Ingester) ignored(rel string) bool {
	for _, pattern := range ing.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// A pattern for a directory's contents also prunes the directory.
		if trimmed, found := strings.CutSuffix(pattern, "/**"); found {
			if ok, _ := doublestar.Match(trimmed, rel); ok {
				return true
			}
		}
	}
	return false
}

// extraction is the language-neutral shape both extractors produce.
type extraction struct {
	Entities  []extractedEntity   `json:"entities"`
	Relations []extractedRelation `json:"relations"`
}

type extractedEntity struct {
	Kind string `json:"kind"` // class, function, service
	Name string `json:"name"`
}

type extractedRelation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"` // IMPORTS, CALLS, EXTENDS, DEPENDS_ON
}

func (ing *Ingester) extract(ctx context.Context, rel, lang, content string) extraction {
	if ing.completer != nil {
		ext, err := ing.llmExtract(ctx, rel, lang, content)
		if err == nil {
			return ext
		}
		logging.Debug("model extraction failed, using regex fallback", "path", rel, "error", err)
	}
	return regexExtract(lang, content)
}

const extractorSystem = `You analyze source code and return its structure as JSON.
Return ONLY a JSON object of this exact shape, nothing else:
{"entities":[{"kind":"class|function|service","name":"..."}],
 "relations":[{"from":"...","to":"...","kind":"IMPORTS|CALLS|EXTENDS|DEPENDS_ON"}]}
Use the file's own name as "from" for imports. Keep names short, no signatures.`

func (ing *Ingester) llmExtract(ctx context.Context, rel, lang, content string) (extraction, error) {
	const maxPromptBytes = 12000
	if len(content) > maxPromptBytes {
		content = content[:maxPromptBytes]
	}

	prompt := fmt.Sprintf("File: %s\nLanguage: %s\n\n%s", rel, lang, content)
	opts := ing.opts
	opts.System = extractorSystem
	opts.JSONFormat = true

	raw, err := ing.completer.Complete(ctx, ing.backendID, prompt, opts)
	if err != nil {
		return extraction{}, err
	}

	payload := client.ExtractJSON(raw)
	if payload == "" {
		return extraction{}, fmt.Errorf("no JSON in extractor response")
	}

	var ext extraction
	if err := json.Unmarshal([]byte(payload), &ext); err != nil {
		return extraction{}, fmt.Errorf("parsing extractor response: %w", err)
	}
	return ext, nil
}

// materialize turns an extraction into concrete nodes and edges. Every file
// gets a file node; entity nodes carry the file; relation endpoints resolve
// to in-file entities first and fall back to fileless placeholder nodes.
func (ing *Ingester) materialize(rel string, ext extraction) ([]Node, []Edge) {
	fileNode := Node{Kind: KindFile, Name: rel, File: rel}
	fileNode.ID = NodeID(fileNode.Kind, fileNode.Name, fileNode.File)

	nodes := []Node{fileNode}
	byName := map[string]string{rel: fileNode.ID, filepath.Base(rel): fileNode.ID}

	for _, e := range ext.Entities {
		kind := nodeKindFor(e.Kind)
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		node := Node{Kind: kind, Name: name, File: rel}
		node.ID = NodeID(node.Kind, node.Name, node.File)
		nodes = append(nodes, node)
		byName[name] = node.ID
	}

	var edges []Edge
	for _, r := range ext.Relations {
		kind := edgeKindFor(r.Kind)
		from := strings.TrimSpace(r.From)
		to := strings.TrimSpace(r.To)
		if from == "" || to == "" || from == to {
			continue
		}

		fromID, ok := byName[from]
		if !ok {
			fromID = fileNode.ID
		}
		toID, ok := byName[to]
		if !ok {
			// External target: a fileless node merged across the graph.
			kindFor := KindFile
			if kind == EdgeExtends || kind == EdgeCalls {
				kindFor = KindClass
			}
			ghost := Node{Kind: kindFor, Name: to}
			ghost.ID = NodeID(ghost.Kind, ghost.Name, "")
			nodes = append(nodes, ghost)
			byName[to] = ghost.ID
			toID = ghost.ID
		}

		edges = append(edges, Edge{From: fromID, To: toID, Kind: kind})
	}

	return nodes, edges
}

func nodeKindFor(s string) NodeKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class", "struct", "type":
		return KindClass
	case "service":
		return KindService
	default:
		return KindFunction
	}
}

func edgeKindFor(s string) EdgeKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IMPORTS":
		return EdgeImports
	case "EXTENDS":
		return EdgeExtends
	case "CALLS":
		return EdgeCalls
	default:
		return EdgeDependsOn
	}
}

var (
	pyClassRe   = regexp.MustCompile(`(?m)^class\s+(\w+)(?:\(([\w.]+)\))?`)
	pyFuncRe    = regexp.MustCompile(`(?m)^(?:\s*)def\s+(\w+)`)
	pyImportRe  = regexp.MustCompile(`(?m)^(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`)
	jsClassRe   = regexp.MustCompile(`(?m)class\s+(\w+)(?:\s+extends\s+([\w.]+))?`)
	jsFuncRe    = regexp.MustCompile(`(?m)(?:^|\s)function\s+(\w+)|(?:const|let)\s+(\w+)\s*=\s*(?:async\s*)?\(`)
	jsImportRe  = regexp.MustCompile(`(?m)(?:import\s+.*?from\s+|require\()\s*['"]([^'"]+)['"]`)
	goTypeRe    = regexp.MustCompile(`(?m)^type\s+(\w+)\s+(?:struct|interface)`)
	goFuncRe    = regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`)
	goImportRe  = regexp.MustCompile(`(?m)^\s*(?:\w+\s+)?"([^"]+)"`)
	goImportBlk = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
)

// regexExtract is the offline fallback extractor. It recognizes classes,
// functions and imports for the main languages the agents generate.
func regexExtract(lang, content string) extraction {
	var ext extraction
	seen := make(map[string]bool)

	addEntity := func(kind, name string) {
		key := kind + ":" + name
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		ext.Entities = append(ext.Entities, extractedEntity{Kind: kind, Name: name})
	}
	addRelation := func(from, to, kind string) {
		key := "r:" + from + ":" + to + ":" + kind
		if to == "" || seen[key] {
			return
		}
		seen[key] = true
		ext.Relations = append(ext.Relations, extractedRelation{From: from, To: to, Kind: kind})
	}

	switch lang {
	case "python":
		for _, m := range pyClassRe.FindAllStringSubmatch(content, -1) {
			addEntity("class", m[1])
			if m[2] != "" {
				addRelation(m[1], m[2], "EXTENDS")
			}
		}
		for _, m := range pyFuncRe.FindAllStringSubmatch(content, -1) {
			addEntity("function", m[1])
		}
		for _, m := range pyImportRe.FindAllStringSubmatch(content, -1) {
			target := m[1]
			if target == "" {
				target = m[2]
			}
			addRelation("", target, "IMPORTS")
		}
	case "javascript", "typescript":
		for _, m := range jsClassRe.FindAllStringSubmatch(content, -1) {
			addEntity("class", m[1])
			if m[2] != "" {
				addRelation(m[1], m[2], "EXTENDS")
			}
		}
		for _, m := range jsFuncRe.FindAllStringSubmatch(content, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			addEntity("function", name)
		}
		for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
			addRelation("", m[1], "IMPORTS")
		}
	case "go":
		for _, m := range goTypeRe.FindAllStringSubmatch(content, -1) {
			addEntity("class", m[1])
		}
		for _, m := range goFuncRe.FindAllStringSubmatch(content, -1) {
			addEntity("function", m[1])
		}
		for _, blk := range goImportBlk.FindAllStringSubmatch(content, -1) {
			for _, m := range goImportRe.FindAllStringSubmatch(blk[1], -1) {
				addRelation("", m[1], "IMPORTS")
			}
		}
	}

	return ext
}

// detectLanguage maps a file path to its language, or "" for files the
// ingester does not understand.
func detectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".go":
		return "go"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	default:
		return ""
	}
}
