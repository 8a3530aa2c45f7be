package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/store/storetest"
)

func TestSqlitestoreContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftwatch.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storetest.Run(t, s)
}
