package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeloom/internal/client"
)

func TestRegexExtractPython(t *testing.T) {
	src := `import os
from flask import Flask

class AuthService(BaseService):
    def login(self):
        pass

def helper():
    pass
`
	ext := regexExtract("python", src)

	wantEntities := map[string]string{
		"AuthService": "class",
		"login":       "function",
		"helper":      "function",
	}
	for _, e := range ext.Entities {
		if kind, ok := wantEntities[e.Name]; ok {
			if e.Kind != kind {
				t.Errorf("entity %s kind = %s, want %s", e.Name, e.Kind, kind)
			}
			delete(wantEntities, e.Name)
		}
	}
	for name := range wantEntities {
		t.Errorf("entity %s not extracted", name)
	}

	foundExtends := false
	foundImport := false
	for _, r := range ext.Relations {
		if r.Kind == "EXTENDS" && r.From == "AuthService" && r.To == "BaseService" {
			foundExtends = true
		}
		if r.Kind == "IMPORTS" && r.To == "flask" {
			foundImport = true
		}
	}
	if !foundExtends {
		t.Error("EXTENDS relation to BaseService not extracted")
	}
	if !foundImport {
		t.Error("IMPORTS relation to flask not extracted")
	}
}

func TestRegexExtractJavaScript(t *testing.T) {
	src := `import React from 'react';
const fetchUser = async (id) => { return id; };
class UserCard extends Component {
}
function render() {}
`
	ext := regexExtract("javascript", src)

	names := make(map[string]bool)
	for _, e := range ext.Entities {
		names[e.Name] = true
	}
	for _, want := range []string{"UserCard", "fetchUser", "render"} {
		if !names[want] {
			t.Errorf("entity %s not extracted", want)
		}
	}
}

func TestIngestDirRespectsIgnores(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"app.py":                  "def main():\n    pass\n",
		"node_modules/pkg/x.js":   "function hidden() {}",
		"__pycache__/app.cpython": "binary",
		"src/util.js":             "function tidy() {}",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store := newTestStore(t)
	ing := NewIngester(store, nil, "", client.Options{}, []string{"node_modules/**", "__pycache__/**"}, 0)

	count, err := ing.IngestDir(context.Background(), root)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if count != 2 {
		t.Errorf("ingested %d files, want 2", count)
	}
	if got := store.Query("hidden"); len(got.Nodes) != 0 {
		t.Errorf("ignored file leaked into graph: %+v", got.Nodes)
	}
	if got := store.Query("tidy"); len(got.Nodes) != 1 {
		t.Errorf("src/util.js not ingested")
	}
}

func TestIngestFileTwiceIsIdempotent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "auth.py"), []byte("class AuthService:\n    def login(self):\n        pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newTestStore(t)
	ing := NewIngester(store, nil, "", client.Options{}, nil, 0)

	if err := ing.IngestFile(context.Background(), root, "auth.py"); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	n1, e1 := store.Stats()

	if err := ing.IngestFile(context.Background(), root, "auth.py"); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	n2, e2 := store.Stats()

	if n1 != n2 || e1 != e2 {
		t.Errorf("re-ingest changed counts: (%d,%d) -> (%d,%d)", n1, e1, n2, e2)
	}
}
