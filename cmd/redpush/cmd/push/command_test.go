package push_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/redpush"
	"github.com/agentstation/redpush/cmd/redpush/cmd/push"
	"github.com/agentstation/redpush/internal/cmd/application"
	"github.com/agentstation/redpush/internal/redash/redashtest"
)

func mockApp(t *testing.T, srv *redashtest.Server) *application.Mock {
	t.Helper()
	client, err := redpush.New(redpush.WithURL(srv.URL), redpush.WithAPIKey("secret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &application.Mock{
		ClientFunc:       func(...redpush.Option) (redpush.Client, error) { return client, nil },
		OutputFormatFunc: func() string { return "json" },
	}
}

func TestCommand_PruneAfterPush(t *testing.T) {
	srv := redashtest.New(t)
	srv.SeedQuery(redashtest.Record{"name": "Orphan", "query": "select 0"})
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- trackingId: q1\n  name: Sales\n  query: select 1\n"), 0o600))

	cmd := push.NewCommand(mockApp(t, srv))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-i", path, "--prune", "--parallel", "2"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), `"archived": 1`)
	assert.Equal(t, 1, srv.CountCalls(http.MethodDelete, "/api/queries/"))
	assert.Equal(t, 1, srv.CountCalls(http.MethodPost, "/api/queries"))
}

func TestCommand_Flags(t *testing.T) {
	cmd := push.NewCommand(&application.Mock{})

	for _, name := range []string{"input", "dry-run", "prune", "parallel"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, []string{"load"}, cmd.Aliases)
	assert.Equal(t, "core", cmd.GroupID)
}
