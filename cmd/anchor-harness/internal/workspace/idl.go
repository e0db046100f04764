package workspace

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// IDL is the compiled interface description emitted by the contract build
// under target/idl/<name>.json. Only the pieces the harness needs are
// modelled; unknown fields are ignored.
type IDL struct {
	Version      string           `json:"version"`
	Name         string           `json:"name"`
	Instructions []IDLInstruction `json:"instructions"`
	Metadata     *IDLMetadata     `json:"metadata,omitempty"`
}

type IDLInstruction struct {
	Name     string       `json:"name"`
	Accounts []IDLAccount `json:"accounts"`
	Args     []IDLField   `json:"args"`
}

type IDLAccount struct {
	Name     string `json:"name"`
	IsMut    bool   `json:"isMut"`
	IsSigner bool   `json:"isSigner"`
}

type IDLField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

func loadIDL(path string) (IDL, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return IDL{}, err
	}
	var idl IDL
	if err := json.Unmarshal(raw, &idl); err != nil {
		return IDL{}, errors.Wrapf(err, "could not parse idl %s", path)
	}
	if idl.Name == "" {
		return IDL{}, errors.Errorf("idl %s has no program name", path)
	}
	if len(idl.Instructions) == 0 {
		return IDL{}, errors.Errorf("idl %s declares no instructions", path)
	}
	return idl, nil
}

// IDLMetadata carries the deployed address the build tool records.
type IDLMetadata struct {
	Address string `json:"address"`
}

// Instruction returns the named instruction, matching case-insensitively on
// the snake_case form so "initialize" finds "Initialize" too.
func (idl IDL) Instruction(name string) (IDLInstruction, bool) {
	want := toSnakeCase(name)
	for _, ix := range idl.Instructions {
		if toSnakeCase(ix.Name) == want {
			return ix, true
		}
	}
	return IDLInstruction{}, false
}

// Discriminator computes the 8 byte instruction tag: the leading bytes of
// sha256 over "global:<snake_case_name>".
func Discriminator(instructionName string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + toSnakeCase(instructionName)))
	var disc [8]byte
	copy(disc[:], sum[:8])
	return disc
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
