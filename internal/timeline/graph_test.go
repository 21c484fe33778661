package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNodeBindsCurrentNode(t *testing.T) {
	g := NewGraph()
	id, err := g.RecordNode(RecordNodeInput{ImageID: "img1", Path: "/a.png", Action: "import"})
	require.NoError(t, err)

	cur, ok := g.CurrentNode("img1")
	require.True(t, ok)
	assert.Equal(t, id, cur)
}

func TestRecordNodeRejectsUnknownParent(t *testing.T) {
	g := NewGraph()
	_, err := g.RecordNode(RecordNodeInput{ImageID: "img1", Parents: []string{"ghost"}})
	assert.ErrorIs(t, err, ErrUnknownParent)
}

func TestRecordNodeNeverCyclic(t *testing.T) {
	g := NewGraph()
	n1, err := g.RecordNode(RecordNodeInput{ImageID: "a", Action: "import"})
	require.NoError(t, err)
	n2, err := g.RecordNode(RecordNodeInput{ImageID: "b", Action: "import"})
	require.NoError(t, err)
	n3, err := g.RecordNode(RecordNodeInput{ImageID: "c", Action: "blend", Parents: []string{n1, n2}})
	require.NoError(t, err)

	// A node can never reference itself or a not-yet-created descendant,
	// because RecordNode always mints a fresh id after validating parents.
	_, err = g.RecordNode(RecordNodeInput{ImageID: "d", Parents: []string{n3, "not-real"}})
	assert.ErrorIs(t, err, ErrUnknownParent)
}

func TestJumpToNodeRestoresBytesAndRebindsNode(t *testing.T) {
	g := NewGraph()
	paths := map[string]string{"img1": "/white.png"}
	var restored []string
	g.ReplaceImageInPlace = func(imageID, path, receiptPath string) error {
		paths[imageID] = path
		restored = append(restored, path)
		return nil
	}
	var activated string
	g.SetActiveImage = func(imageID string) { activated = imageID }

	n1, _ := g.RecordNode(RecordNodeInput{ImageID: "img1", Path: "/orig.png", Action: "import"})
	_, _ = g.RecordNode(RecordNodeInput{ImageID: "img1", Path: "/white.png", Action: "bg_white", Parents: []string{n1}})

	err := g.JumpToNode(n1, func(imageID string) string { return paths[imageID] })
	require.NoError(t, err)

	cur, _ := g.CurrentNode("img1")
	assert.Equal(t, n1, cur)
	assert.Equal(t, "img1", activated)
	assert.Equal(t, []string{"/orig.png"}, restored)
}
