package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogsync/internal/metadata"
)

const sample = `
tenantId: 7d1f4f0e-3b7a-4c57-9a38-0f2f7f0e1c11
databaseUrl: postgres://localhost/app
catalogs:
  - id: 0a0a0a0a-0a0a-4a0a-8a0a-0a0a0a0a0a0a
    codename: customer
    attributes:
      - id: 1b1b1b1b-1b1b-4b1b-8b1b-1b1b1b1b1b1b
        codename: name
        dataType: STRING
        isRequired: true
  - id: 2c2c2c2c-2c2c-4c2c-8c2c-2c2c2c2c2c2c
    codename: order
    attributes:
      - id: 3d3d3d3d-3d3d-4d3d-8d3d-3d3d3d3d3d3d
        codename: customer
        dataType: REF
        targetCatalogId: 0a0a0a0a-0a0a-4a0a-8a0a-0a0a0a0a0a0a
`

func TestParse(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, uuid.MustParse("7d1f4f0e-3b7a-4c57-9a38-0f2f7f0e1c11"), cfg.TenantID)
	assert.Equal(t, "postgres://localhost/app", cfg.DatabaseURL)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "catalogsync.db", cfg.Store.Path)
	assert.Equal(t, "catalogsync", cfg.Metrics.Namespace)

	require.Len(t, cfg.Catalogs, 2)
	ref := cfg.Catalogs[1].Attributes[0]
	assert.Equal(t, metadata.DataTypeRef, ref.DataType)
	require.NotNil(t, ref.TargetCatalogID)
	assert.Equal(t, cfg.Catalogs[0].ID, *ref.TargetCatalogID)
	assert.True(t, cfg.Catalogs[0].Attributes[0].IsRequired)
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "postgres://override/db")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "postgres://override/db", cfg.DatabaseURL)
}

func TestParse_Errors(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing tenant",
			doc:     "catalogs: []\n",
			wantErr: "tenantId is required",
		},
		{
			name:    "unknown key",
			doc:     "tenantId: 7d1f4f0e-3b7a-4c57-9a38-0f2f7f0e1c11\ntenant: x\n",
			wantErr: "field tenant not found",
		},
		{
			name:    "bad store driver",
			doc:     "tenantId: 7d1f4f0e-3b7a-4c57-9a38-0f2f7f0e1c11\nstore:\n  driver: mysql\n",
			wantErr: "unsupported store driver",
		},
		{
			name: "ref without target",
			doc: `tenantId: 7d1f4f0e-3b7a-4c57-9a38-0f2f7f0e1c11
catalogs:
  - id: 0a0a0a0a-0a0a-4a0a-8a0a-0a0a0a0a0a0a
    codename: a
    attributes:
      - id: 1b1b1b1b-1b1b-4b1b-8b1b-1b1b1b1b1b1b
        codename: b
        dataType: REF
`,
			wantErr: "invalid catalogs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_InvalidDefinitionIsSentinel(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	doc := `tenantId: 7d1f4f0e-3b7a-4c57-9a38-0f2f7f0e1c11
catalogs:
  - id: 0a0a0a0a-0a0a-4a0a-8a0a-0a0a0a0a0a0a
    codename: a
  - id: 0a0a0a0a-0a0a-4a0a-8a0a-0a0a0a0a0a0a
    codename: b
`
	_, err := Parse([]byte(doc))
	require.ErrorIs(t, err, metadata.ErrInvalidDefinition)
}

func TestLoad(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	path := filepath.Join(t.TempDir(), "catalogsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Catalogs, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
