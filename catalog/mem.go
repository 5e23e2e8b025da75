package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Mem is an in-memory Store.  It backs the tests and is handy for
// throwaway filesystems that don't need to survive a restart.
type Mem struct {
	mu     sync.Mutex
	nodes  map[string]*Node
	nextID int
}

// NewMem makes an empty in-memory store.
func NewMem() *Mem {
	return &Mem{nodes: make(map[string]*Node)}
}

// check interface
var _ Store = (*Mem)(nil)

func (m *Mem) newID() string {
	m.nextID++
	return fmt.Sprintf("node-%06d", m.nextID)
}

// EnsureRoot returns the root node, inserting it first if absent.
func (m *Mem) EnsureRoot(ctx context.Context) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range m.nodes {
		if node.IsRoot() {
			return node.Clone(), nil
		}
	}
	root := newFolderNode("", "")
	root.ID = m.newID()
	m.nodes[root.ID] = root
	return root.Clone(), nil
}

// Get returns the node with the given id.
func (m *Mem) Get(ctx context.Context, id string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[id]
	if !ok {
		return nil, nil
	}
	return node.Clone(), nil
}

// Child returns the node named name directly under parentID.
func (m *Mem) Child(ctx context.Context, parentID, name string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range m.nodes {
		if node.Parent == parentID && node.Name == name {
			return node.Clone(), nil
		}
	}
	return nil, nil
}

// Children returns all nodes directly under parentID.
func (m *Mem) Children(ctx context.Context, parentID string) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Node
	for _, node := range m.nodes {
		if node.Parent == parentID && !node.IsRoot() {
			out = append(out, node.Clone())
		}
	}
	return out, nil
}

// Insert stores a new node and returns its assigned id.
func (m *Mem) Insert(ctx context.Context, node *Node) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := node.Clone()
	if stored.ID == "" {
		stored.ID = m.newID()
	}
	m.nodes[stored.ID] = stored
	return stored.ID, nil
}

// Update replaces the stored node with the same id.
func (m *Mem) Update(ctx context.Context, node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[node.ID]; !ok {
		return errors.Errorf("node %q not found", node.ID)
	}
	m.nodes[node.ID] = node.Clone()
	return nil
}

// Delete removes the node with the given id.
func (m *Mem) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	return nil
}

// Clear removes every node except the root.
func (m *Mem) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, node := range m.nodes {
		if !node.IsRoot() {
			delete(m.nodes, id)
		}
	}
	return nil
}

// Len returns the number of stored nodes including the root.
func (m *Mem) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}
