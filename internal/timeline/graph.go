// Package timeline implements the append-only DAG of generation artifacts
// (spec.md §3 TimelineNode, §4.7).
package timeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Node is one artifact in the timeline DAG. Parents reference other node
// ids (never pointers), per spec.md §9's "avoid shared-mutable graphs".
type Node struct {
	ID          string
	ImageID     string
	Path        string
	ReceiptPath string
	Label       string
	Action      string
	Parents     []string
	CreatedAt   int64
}

// ErrCycle is returned by RecordNode when parents would introduce a cycle.
var ErrCycle = fmt.Errorf("timeline: parents introduce a cycle")

// ErrUnknownParent is returned when a named parent id doesn't exist.
var ErrUnknownParent = fmt.Errorf("timeline: unknown parent id")

// Graph owns every timeline node and the current node bound to each image.
type Graph struct {
	mu         sync.Mutex
	nodes      map[string]*Node
	imageNode  map[string]string // imageID -> current node id

	// ReplaceImageInPlace is called by JumpToNode to restore a node's
	// bytes onto its image, matching spec.md §4.7's contract.
	ReplaceImageInPlace func(imageID, path, receiptPath string) error
	// SetActiveImage focuses the jumped-to image.
	SetActiveImage func(imageID string)
}

func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		imageNode: make(map[string]string),
	}
}

// RecordNodeInput carries the fields needed to append a node.
type RecordNodeInput struct {
	ImageID     string
	Path        string
	ReceiptPath string
	Label       string
	Action      string
	Parents     []string
	CreatedAt   int64
}

// RecordNode appends a node and binds it as the image's current node
// (spec.md §4.7). It rejects inputs that would introduce a cycle or
// reference an unknown parent (spec.md §8 "acyclic for any sequence").
func (g *Graph) RecordNode(in RecordNodeInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range in.Parents {
		if _, ok := g.nodes[p]; !ok {
			return "", ErrUnknownParent
		}
	}

	id := uuid.NewString()
	if g.wouldCycle(id, in.Parents) {
		return "", ErrCycle
	}

	g.nodes[id] = &Node{
		ID:          id,
		ImageID:     in.ImageID,
		Path:        in.Path,
		ReceiptPath: in.ReceiptPath,
		Label:       in.Label,
		Action:      in.Action,
		Parents:     append([]string(nil), in.Parents...),
		CreatedAt:   in.CreatedAt,
	}
	g.imageNode[in.ImageID] = id
	return id, nil
}

// wouldCycle reports whether adding a node with the given parents would
// create a path back to candidateID. Since candidateID is always new
// (just minted), this can only happen if a parent transitively depends
// on a node that hasn't been created yet, which RecordNode already
// prevents by requiring parents to preexist; this check remains as the
// structural guarantee spec.md §8 asks tests to verify.
func (g *Graph) wouldCycle(candidateID string, parents []string) bool {
	seen := make(map[string]bool)
	var visit func(id string) bool
	visit = func(id string) bool {
		if id == candidateID {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		n, ok := g.nodes[id]
		if !ok {
			return false
		}
		for _, p := range n.Parents {
			if visit(p) {
				return true
			}
		}
		return false
	}
	for _, p := range parents {
		if visit(p) {
			return true
		}
	}
	return false
}

// Node returns a copy of the node, if present.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// CurrentNode returns the node id currently bound to imageID.
func (g *Graph) CurrentNode(imageID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.imageNode[imageID]
	return id, ok
}

// RecentNodes returns up to n of the most recently created nodes, newest
// last, used to populate the ambient "canvas context envelope" last-12
// timeline nodes field (spec.md §4.5 step 3).
func (g *Graph) RecentNodes(n int) []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	all := make([]Node, 0, len(g.nodes))
	for _, nd := range g.nodes {
		all = append(all, *nd)
	}
	// stable sort by CreatedAt ascending; ties broken by ID for determinism.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && less(all[j], all[j-1]); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

func less(a, b Node) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// JumpToNode sets the active image to nodeID's image; if the image's
// current path differs from the node's path, it restores the node's
// bytes via ReplaceImageInPlace and re-binds the image's current node
// (spec.md §4.7, scenario 6).
func (g *Graph) JumpToNode(nodeID string, currentPath func(imageID string) string) error {
	g.mu.Lock()
	n, ok := g.nodes[nodeID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("timeline: unknown node %q", nodeID)
	}
	node := *n
	g.mu.Unlock()

	if currentPath(node.ImageID) != node.Path {
		if g.ReplaceImageInPlace != nil {
			if err := g.ReplaceImageInPlace(node.ImageID, node.Path, node.ReceiptPath); err != nil {
				return err
			}
		}
	}

	g.mu.Lock()
	g.imageNode[node.ImageID] = nodeID
	g.mu.Unlock()

	if g.SetActiveImage != nil {
		g.SetActiveImage(node.ImageID)
	}
	return nil
}
