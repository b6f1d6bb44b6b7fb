package harvest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes([]byte(`
routes:
  - origin: PAD
    destination: SAU
  - origin: KGX
    destination: EDB
`))
	require.NoError(t, err)
	assert.Equal(t, []Route{
		{Origin: "PAD", Destination: "SAU"},
		{Origin: "KGX", Destination: "EDB"},
	}, routes)
}

func TestParseRoutesInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"lowercase", "routes:\n  - origin: pad\n    destination: SAU\n"},
		{"missing destination", "routes:\n  - origin: PAD\n"},
		{"same station", "routes:\n  - origin: PAD\n    destination: PAD\n"},
		{"not yaml", "routes: [\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(test.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - origin: PAD\n    destination: SAU\n"), 0o644))

	routes, err := LoadRoutes(path)
	require.NoError(t, err)
	assert.Len(t, routes, 1)

	_, err = LoadRoutes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
