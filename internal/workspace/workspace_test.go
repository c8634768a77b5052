package workspace

import (
	"errors"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := ws.Write("src/main.js", []byte("console.log(1)"), ModeCreate); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := ws.Read("src/main.js")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "console.log(1)" {
		t.Errorf("Read = %q, want %q", data, "console.log(1)")
	}
}

func TestWriteModes(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := ws.Write("a.txt", []byte("one"), ModeCreate); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ws.Write("a.txt", []byte("two"), ModeCreate); !errors.Is(err, ErrExists) {
		t.Errorf("second create error = %v, want ErrExists", err)
	}
	if err := ws.Write("a.txt", []byte("two"), ModeOverwrite); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := ws.Write("a.txt", []byte("-three"), ModeAppend); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := ws.Read("a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "two-three" {
		t.Errorf("content = %q, want %q", data, "two-three")
	}
}

func TestReadMissingFile(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := ws.Read("nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read missing = %v, want ErrNotFound", err)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../outside.txt"},
		{"deep traversal", "a/../../../etc/passwd"},
		{"absolute outside", "/etc/passwd"},
		{"empty", ""},
		{"null byte", "a\x00b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ws.Resolve(tt.path); !errors.Is(err, ErrPermissionDenied) {
				t.Errorf("Resolve(%q) error = %v, want ErrPermissionDenied", tt.path, err)
			}
		})
	}
}

func TestListAndHistory(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	files := []string{"index.html", "css/style.css", "js/app.js"}
	for _, f := range files {
		if err := ws.Write(f, []byte("x"), ModeCreate); err != nil {
			t.Fatalf("Write %s: %v", f, err)
		}
	}

	got, err := ws.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"css/style.css", "index.html", "js/app.js"}
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if ops := ws.Operations(); len(ops) != 3 {
		t.Errorf("Operations count = %d, want 3", len(ops))
	}
}
