package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())

	g.Reset()
	assert.Equal(t, "run-1", g.Generate())

	assert.Equal(t, "t-1", NewSequentialIDs("t").Generate())
}

func TestAddProject(t *testing.T) {
	files := AddProject("proj")
	assert.Equal(t, AddHack, files["proj/Add.hack"])
	assert.Contains(t, files, "proj/Add.tst")
	assert.Contains(t, AddProject(""), "Add.cmp")
}
