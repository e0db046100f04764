package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testProgramName = "fashion_market_contract"
	testProgramID   = "B5AfjkkfsNFZzuk3Yjd2vFkQmkbKEdcoi5vtztCmtqeM"
)

const testManifest = `[features]
seeds = false
skip-lint = false

[programs.localnet]
fashion_market_contract = "` + testProgramID + `"

[registry]
url = "https://api.apr.dev"

[provider]
cluster = "localnet"
wallet = "id.json"

[scripts]
test = "yarn run ts-mocha -p ./tsconfig.json -t 1000000 tests/**/*.ts"
`

const testIDL = `{
  "version": "0.1.0",
  "name": "fashion_market_contract",
  "instructions": [
    {
      "name": "initialize",
      "accounts": [],
      "args": []
    }
  ],
  "metadata": {
    "address": "` + testProgramID + `"
  }
}`

// writeWorkspace lays out a minimal scaffold-shaped workspace in a temp dir.
func writeWorkspace(t *testing.T, manifest, idl string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestName), []byte(manifest), 0o644))
	if idl != "" {
		idlPath := filepath.Join(dir, idlDir, testProgramName+".json")
		require.NoError(t, os.MkdirAll(filepath.Dir(idlPath), 0o755))
		require.NoError(t, os.WriteFile(idlPath, []byte(idl), 0o644))
	}
	return dir
}
