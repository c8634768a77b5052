package graph

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "graph.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestAddNodeMergesByIdentity(t *testing.T) {
	s := newTestStore(t)

	s.AddNode(Node{Kind: KindClass, Name: "AuthService", File: "auth.py"})
	s.AddNode(Node{Kind: KindClass, Name: "AuthService", File: "auth.py"})
	s.AddNode(Node{Kind: KindFunction, Name: "AuthService", File: "auth.py"})

	nodes, _ := s.Stats()
	if nodes != 2 {
		t.Errorf("node count = %d, want 2 (same identity merges, different kind does not)", nodes)
	}
}

func TestQueryReturnsOneHopNeighborhood(t *testing.T) {
	s := newTestStore(t)

	auth := s.AddNode(Node{Kind: KindClass, Name: "AuthService", File: "auth.py"})
	db := s.AddNode(Node{Kind: KindService, Name: "Database", File: "db.py"})
	s.AddNode(Node{Kind: KindClass, Name: "Renderer", File: "ui.py"})
	s.AddEdge(Edge{From: auth.ID, To: db.ID, Kind: EdgeDependsOn})

	result := s.Query("auth")
	if len(result.Nodes) != 1 || result.Nodes[0].Name != "AuthService" {
		t.Fatalf("Query(auth).Nodes = %+v, want [AuthService]", result.Nodes)
	}
	if len(result.Edges) != 1 || result.Edges[0].Kind != EdgeDependsOn {
		t.Fatalf("Query(auth).Edges = %+v, want one DEPENDS_ON edge", result.Edges)
	}
	if len(result.Neighbors) != 1 || result.Neighbors[0].Name != "Database" {
		t.Errorf("Query(auth).Neighbors = %+v, want [Database]", result.Neighbors)
	}
}

func TestQueryIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	s.AddNode(Node{Kind: KindFunction, Name: "handleLogin", File: "auth.js"})

	for _, term := range []string{"handlelogin", "HANDLELOGIN", "Login"} {
		if got := s.Query(term); len(got.Nodes) != 1 {
			t.Errorf("Query(%q) matched %d nodes, want 1", term, len(got.Nodes))
		}
	}
}

func TestQueryEmptyTerm(t *testing.T) {
	s := newTestStore(t)
	s.AddNode(Node{Kind: KindFile, Name: "main.go", File: "main.go"})

	if got := s.Query(""); len(got.Nodes) != 0 {
		t.Errorf("Query(\"\") = %+v, want empty result", got.Nodes)
	}
	if got := s.Query("   "); len(got.Nodes) != 0 {
		t.Errorf("Query(blank) = %+v, want empty result", got.Nodes)
	}
}

func TestEdgeRequiresBothEndpoints(t *testing.T) {
	s := newTestStore(t)
	a := s.AddNode(Node{Kind: KindFile, Name: "a.py", File: "a.py"})

	s.AddEdge(Edge{From: a.ID, To: "missing", Kind: EdgeImports})

	if _, edges := s.Stats(); edges != 0 {
		t.Errorf("edge count = %d, want 0 (dangling edges dropped)", edges)
	}
}

func TestReplaceFileIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	build := func() ([]Node, []Edge) {
		file := Node{Kind: KindFile, Name: "auth.py", File: "auth.py"}
		file.ID = NodeID(file.Kind, file.Name, file.File)
		cls := Node{Kind: KindClass, Name: "AuthService", File: "auth.py"}
		cls.ID = NodeID(cls.Kind, cls.Name, cls.File)
		return []Node{file, cls}, []Edge{{From: file.ID, To: cls.ID, Kind: EdgeDependsOn}}
	}

	nodes, edges := build()
	s.ReplaceFile("auth.py", nodes, edges)
	firstNodes, firstEdges := s.Stats()

	nodes, edges = build()
	s.ReplaceFile("auth.py", nodes, edges)
	secondNodes, secondEdges := s.Stats()

	if firstNodes != secondNodes || firstEdges != secondEdges {
		t.Errorf("re-ingest changed counts: (%d,%d) -> (%d,%d)",
			firstNodes, firstEdges, secondNodes, secondEdges)
	}
}

func TestReplaceFileDropsStaleEntities(t *testing.T) {
	s := newTestStore(t)

	old := Node{Kind: KindFunction, Name: "oldHelper", File: "util.js"}
	old.ID = NodeID(old.Kind, old.Name, old.File)
	s.ReplaceFile("util.js", []Node{old}, nil)

	fresh := Node{Kind: KindFunction, Name: "newHelper", File: "util.js"}
	fresh.ID = NodeID(fresh.Kind, fresh.Name, fresh.File)
	s.ReplaceFile("util.js", []Node{fresh}, nil)

	if got := s.Query("oldHelper"); len(got.Nodes) != 0 {
		t.Errorf("stale node survived re-ingest: %+v", got.Nodes)
	}
	if got := s.Query("newHelper"); len(got.Nodes) != 1 {
		t.Errorf("fresh node missing after re-ingest")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	a := s.AddNode(Node{Kind: KindClass, Name: "Cart", File: "cart.py"})
	b := s.AddNode(Node{Kind: KindService, Name: "Stripe"})
	s.AddEdge(Edge{From: a.ID, To: b.ID, Kind: EdgeDependsOn})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore(reload): %v", err)
	}
	nodes, edges := loaded.Stats()
	if nodes != 2 || edges != 1 {
		t.Errorf("reloaded stats = (%d,%d), want (2,1)", nodes, edges)
	}
	if got := loaded.Query("cart"); len(got.Neighbors) != 1 || got.Neighbors[0].Name != "Stripe" {
		t.Errorf("reloaded query lost neighborhood: %+v", got)
	}
}
