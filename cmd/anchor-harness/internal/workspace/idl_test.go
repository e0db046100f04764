package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscriminator(t *testing.T) {
	// sha256("global:initialize")[:8]
	assert.Equal(t, [8]byte{175, 175, 109, 31, 13, 152, 155, 237}, Discriminator("initialize"))
	// camelCase names normalize to snake_case before hashing
	assert.Equal(t, Discriminator("list_item"), Discriminator("listItem"))
	assert.NotEqual(t, Discriminator("initialize"), Discriminator("list_item"))
}

func TestToSnakeCase(t *testing.T) {
	for in, want := range map[string]string{
		"initialize":    "initialize",
		"listItem":      "list_item",
		"ListItem":      "list_item",
		"settleAuction": "settle_auction",
	} {
		assert.Equal(t, want, toSnakeCase(in))
	}
}

func TestInstructionLookupIsCaseInsensitive(t *testing.T) {
	idl := IDL{
		Name: testProgramName,
		Instructions: []IDLInstruction{
			{Name: "initialize"},
			{Name: "listItem"},
		},
	}

	ix, ok := idl.Instruction("Initialize")
	require.True(t, ok)
	assert.Equal(t, "initialize", ix.Name)

	ix, ok = idl.Instruction("list_item")
	require.True(t, ok)
	assert.Equal(t, "listItem", ix.Name)

	_, ok = idl.Instruction("delist_item")
	assert.False(t, ok)
}

func TestLoadIDLValidation(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
		return path
	}

	_, err := loadIDL(write("bad.json", "{"))
	assert.ErrorContains(t, err, "could not parse idl")

	_, err = loadIDL(write("unnamed.json", `{"instructions":[{"name":"initialize"}]}`))
	assert.ErrorContains(t, err, "no program name")

	_, err = loadIDL(write("empty.json", `{"name":"x","instructions":[]}`))
	assert.ErrorContains(t, err, "declares no instructions")

	idl, err := loadIDL(write("ok.json", testIDL))
	require.NoError(t, err)
	assert.Equal(t, testProgramName, idl.Name)
	require.NotNil(t, idl.Metadata)
	assert.Equal(t, testProgramID, idl.Metadata.Address)
}
