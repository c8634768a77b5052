package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codeloom/internal/client"
	"codeloom/internal/config"
	"codeloom/internal/logging"
)

// Handle is one spawned agent instance: a role bound to a concrete model
// profile for the duration of a single piece of work.
type Handle struct {
	ID          string
	Role        Role
	Category    TaskCategory
	Backend     string
	Model       string
	Temperature float32
	MaxTokens   int32
	SpawnedAt   time.Time
}

// Options translates the handle into gateway call options.
func (h Handle) Options() client.Options {
	return client.Options{
		Model:       h.Model,
		Temperature: h.Temperature,
		MaxTokens:   h.MaxTokens,
	}
}

// Spawner creates agent handles and tracks which are live. Each handle gets
// a unique id so concurrent executors are distinguishable in logs and
// reports.
type Spawner struct {
	cfg            config.AgentsConfig
	defaultBackend string

	mu      sync.Mutex
	active  map[string]Handle
	spawned int
}

// NewSpawner creates a spawner using the configured per-role profiles.
// defaultBackend fills in for profiles that leave the backend empty.
func NewSpawner(cfg config.AgentsConfig, defaultBackend string) *Spawner {
	return &Spawner{
		cfg:            cfg,
		defaultBackend: defaultBackend,
		active:         make(map[string]Handle),
	}
}

// Spawn creates a handle for the given role, classifying the task to pick a
// model when the role's profile does not pin one.
func (s *Spawner) Spawn(role Role, taskDescription string) Handle {
	profile := s.profileFor(role)
	category := Classify(taskDescription, role)

	backend := profile.Backend
	if backend == "" {
		backend = s.defaultBackend
	}
	model := profile.Model
	if model == "" {
		model = ModelForCategory(category)
	}

	h := Handle{
		ID:          string(role) + "-" + uuid.NewString(),
		Role:        role,
		Category:    category,
		Backend:     backend,
		Model:       model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
		SpawnedAt:   time.Now(),
	}

	s.mu.Lock()
	s.active[h.ID] = h
	s.spawned++
	s.mu.Unlock()

	logging.Debug("agent spawned",
		"id", h.ID,
		"role", string(role),
		"category", string(category),
		"backend", backend,
		"model", model)
	return h
}

// Terminate releases a handle. Returns false if the id is not live.
func (s *Spawner) Terminate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	return true
}

// Active returns the live handles sorted by spawn order id.
func (s *Spawner) Active() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handle, 0, len(s.active))
	for _, h := range s.active {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Spawned returns the total number of handles ever created.
func (s *Spawner) Spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

func (s *Spawner) profileFor(role Role) config.AgentProfile {
	switch role {
	case RolePlanner:
		return s.cfg.Planner
	case RoleExecutor, RoleAnalyzer:
		return s.cfg.Executor
	case RoleFinalizer:
		return s.cfg.Finalizer
	case RoleExtractor:
		return s.cfg.Extractor
	case RoleVision:
		return s.cfg.Vision
	default:
		return s.cfg.Executor
	}
}
