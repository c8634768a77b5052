// Package graph maintains a lightweight knowledge graph of a codebase:
// typed nodes for files, classes, functions and services, and typed edges
// for the relationships between them. The graph is built by the ingester,
// persisted as JSON, and queried by the engine to assemble task context.
package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"codeloom/internal/fileutil"
	"codeloom/internal/logging"
)

// NodeKind classifies a graph node.
type NodeKind string

const (
	KindFile     NodeKind = "file"
	KindClass    NodeKind = "class"
	KindFunction NodeKind = "function"
	KindService  NodeKind = "service"
)

// EdgeKind classifies a relationship between two nodes.
type EdgeKind string

const (
	EdgeImports   EdgeKind = "IMPORTS"
	EdgeCalls     EdgeKind = "CALLS"
	EdgeExtends   EdgeKind = "EXTENDS"
	EdgeDependsOn EdgeKind = "DEPENDS_ON"
)

// Node is one entity in the graph. Identity is the (Kind, Name, File)
// triple; re-adding an existing identity merges instead of duplicating.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	Name string   `json:"name"`
	File string   `json:"file,omitempty"`
}

// Edge is a directed, typed relationship between two nodes by ID.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// QueryResult holds the nodes matching a query plus their one-hop
// neighborhood.
type QueryResult struct {
	Nodes     []Node
	Edges     []Edge
	Neighbors []Node
}

// Store is the in-memory graph with JSON persistence.
type Store struct {
	path string

	mu     sync.RWMutex
	nodes  map[string]Node     // ID -> Node
	edges  map[string]Edge     // edge key -> Edge
	byFile map[string][]string // file -> node IDs ingested from it
}

type persistedGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewStore creates a graph store backed by the given JSON file. An existing
// file is loaded; a corrupt or missing file starts the graph empty.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:   path,
		nodes:  make(map[string]Node),
		edges:  make(map[string]Edge),
		byFile: make(map[string][]string),
	}

	if err := s.load(); err != nil {
		// Non-fatal, start fresh if load fails.
		logging.Warn("graph store load failed, starting empty", "path", path, "error", err)
		s.nodes = make(map[string]Node)
		s.edges = make(map[string]Edge)
		s.byFile = make(map[string][]string)
	}

	return s, nil
}

// NodeID derives the stable identity for a (kind, name, file) triple.
func NodeID(kind NodeKind, name, file string) string {
	return fmt.Sprintf("%s:%s:%s", kind, name, file)
}

// AddNode inserts a node, merging with any existing node of the same
// identity. The node's ID is derived from its identity triple.
func (s *Store) AddNode(node Node) Node {
	node.ID = NodeID(node.Kind, node.Name, node.File)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; !exists && node.File != "" {
		s.byFile[node.File] = append(s.byFile[node.File], node.ID)
	}
	s.nodes[node.ID] = node
	return node
}

// AddEdge inserts a directed edge. Duplicate edges collapse to one; edges
// referencing unknown nodes are dropped.
func (s *Store) AddEdge(edge Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.From]; !ok {
		return
	}
	if _, ok := s.nodes[edge.To]; !ok {
		return
	}
	s.edges[edgeKey(edge)] = edge
}

func edgeKey(e Edge) string {
	return e.From + "|" + string(e.Kind) + "|" + e.To
}

// ReplaceFile atomically swaps every node (and incident edge) previously
// ingested from file with the given nodes and edges. Re-ingesting a file is
// therefore idempotent.
func (s *Store) ReplaceFile(file string, nodes []Node, edges []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byFile[file] {
		delete(s.nodes, id)
		for key, e := range s.edges {
			if e.From == id || e.To == id {
				delete(s.edges, key)
			}
		}
	}
	delete(s.byFile, file)

	for _, node := range nodes {
		node.ID = NodeID(node.Kind, node.Name, node.File)
		if _, exists := s.nodes[node.ID]; !exists && node.File != "" {
			s.byFile[node.File] = append(s.byFile[node.File], node.ID)
		}
		s.nodes[node.ID] = node
	}
	for _, edge := range edges {
		if _, ok := s.nodes[edge.From]; !ok {
			continue
		}
		if _, ok := s.nodes[edge.To]; !ok {
			continue
		}
		s.edges[edgeKey(edge)] = edge
	}
}

// Query returns all nodes whose name contains term (case-insensitive),
// together with their one-hop edges and neighbor nodes. An empty term
// returns an empty result.
func (s *Store) Query(term string) QueryResult {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return QueryResult{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]Node)
	for id, node := range s.nodes {
		if strings.Contains(strings.ToLower(node.Name), term) {
			matched[id] = node
		}
	}

	var result QueryResult
	neighborIDs := make(map[string]bool)
	for _, edge := range s.edges {
		_, fromMatched := matched[edge.From]
		_, toMatched := matched[edge.To]
		if !fromMatched && !toMatched {
			continue
		}
		result.Edges = append(result.Edges, edge)
		if !fromMatched {
			neighborIDs[edge.From] = true
		}
		if !toMatched {
			neighborIDs[edge.To] = true
		}
	}

	for _, node := range matched {
		result.Nodes = append(result.Nodes, node)
	}
	for id := range neighborIDs {
		result.Neighbors = append(result.Neighbors, s.nodes[id])
	}

	sortNodes(result.Nodes)
	sortNodes(result.Neighbors)
	sort.Slice(result.Edges, func(i, j int) bool {
		return edgeKey(result.Edges[i]) < edgeKey(result.Edges[j])
	})

	return result
}

// Nodes returns all nodes, sorted by ID.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node)
	}
	sortNodes(out)
	return out
}

// Stats returns node and edge counts.
func (s *Store) Stats() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Save persists the graph to its backing file atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	snapshot := persistedGraph{
		Nodes: make([]Node, 0, len(s.nodes)),
		Edges: make([]Edge, 0, len(s.edges)),
	}
	for _, node := range s.nodes {
		snapshot.Nodes = append(snapshot.Nodes, node)
	}
	for _, edge := range s.edges {
		snapshot.Edges = append(snapshot.Edges, edge)
	}
	s.mu.RUnlock()

	sortNodes(snapshot.Nodes)
	sort.Slice(snapshot.Edges, func(i, j int) bool {
		return edgeKey(snapshot.Edges[i]) < edgeKey(snapshot.Edges[j])
	})

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating graph directory: %w", err)
	}
	return fileutil.AtomicWrite(s.path, data, 0o644)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snapshot persistedGraph
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}

	for _, node := range snapshot.Nodes {
		s.nodes[node.ID] = node
		if node.File != "" {
			s.byFile[node.File] = append(s.byFile[node.File], node.ID)
		}
	}
	for _, edge := range snapshot.Edges {
		s.edges[edgeKey(edge)] = edge
	}
	return nil
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// FormatContext renders a query result as a prompt-ready context block.
func FormatContext(result QueryResult) string {
	if len(result.Nodes) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("## Relevant code structure\n\n")
	for _, node := range result.Nodes {
		if node.File != "" {
			builder.WriteString(fmt.Sprintf("- %s %s (in %s)\n", node.Kind, node.Name, node.File))
		} else {
			builder.WriteString(fmt.Sprintf("- %s %s\n", node.Kind, node.Name))
		}
	}
	if len(result.Edges) > 0 {
		builder.WriteString("\n## Relationships\n\n")
		for _, edge := range result.Edges {
			builder.WriteString(fmt.Sprintf("- %s %s %s\n", edge.From, edge.Kind, edge.To))
		}
	}
	return builder.String()
}
