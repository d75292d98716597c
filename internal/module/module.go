// Package module defines the steps a plan can run against a board.
package module

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eugenetaranov/t2/internal/executor"
	"github.com/eugenetaranov/t2/internal/provision"
	"github.com/eugenetaranov/t2/internal/wifi"
)

// Board is the connected board a module operates on.
type Board interface {
	ProvisionTessel(ctx context.Context) (provision.Outcome, error)
	SetDefaultKey(path string) error
	FindAvailableNetworks(ctx context.Context) ([]wifi.Network, error)
	ConnectToNetwork(ctx context.Context, creds wifi.Credentials) error
	SetWiFiState(ctx context.Context, enabled bool) error
	Executor() *executor.Executor
}

// Result holds the outcome of a module execution.
type Result struct {
	// Changed indicates whether the module changed the board.
	Changed bool

	// Message is a human-readable description of what happened.
	Message string

	// Data holds any additional output data from the module.
	Data map[string]any
}

// Module is the interface that all modules must implement.
type Module interface {
	// Name returns the module's unique identifier.
	Name() string

	// Run executes the module with the given parameters.
	Run(ctx context.Context, board Board, params map[string]any) (*Result, error)
}

// registry holds all registered modules.
var (
	registry   = make(map[string]Module)
	registryMu sync.RWMutex
)

// Register adds a module to the registry.
// It panics if a module with the same name is already registered.
func Register(m Module) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := m.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("module %q is already registered", name))
	}
	registry[name] = m
}

// Get retrieves a module from the registry by name.
// Returns nil if the module is not found.
func Get(name string) Module {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// List returns the sorted names of all registered modules.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Changed creates a Result indicating a change was made.
func Changed(msg string) *Result {
	return &Result{Changed: true, Message: msg}
}

// Unchanged creates a Result indicating no change was needed.
func Unchanged(msg string) *Result {
	return &Result{Changed: false, Message: msg}
}

// ChangedWithData creates a Result with a change and additional data.
func ChangedWithData(msg string, data map[string]any) *Result {
	return &Result{Changed: true, Message: msg, Data: data}
}

// UnchangedWithData creates a Result without a change but with data.
func UnchangedWithData(msg string, data map[string]any) *Result {
	return &Result{Changed: false, Message: msg, Data: data}
}
