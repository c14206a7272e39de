package server_test

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/rpc/client"
	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/ValentinKolb/dCheck/rpc/serializer"
	"github.com/ValentinKolb/dCheck/rpc/server"
	"github.com/ValentinKolb/dCheck/rpc/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache stops its janitor in a finalizer
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// startServer runs a server on a httptest server and returns its url
func startServer(t *testing.T, config common.ServerConfig) string {
	t.Helper()
	if config.LogLevel == "" {
		config.LogLevel = "error"
	}

	tr := http.NewHttpServerTransport()
	srv := server.NewRPCServer(config, tr, serializer.NewJSONSerializer())
	require.NoError(t, srv.Init())

	ts := httptest.NewServer(tr.(nethttp.Handler))
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, srv.Shutdown(context.Background()))
	})
	return ts.URL
}

// connect creates a logged in client
func connect(t *testing.T, url string, shardId uint64, user, password string) (*client.RPCStore, error) {
	t.Helper()
	s, err := client.NewRPCStore(shardId, common.ClientConfig{
		Endpoints:     []string{url},
		TimeoutSecond: 5,
		RetryCount:    1,
	}, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, s.Login(user, password)
}

func memoryShard() []common.ServerShard {
	return []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalMemory}}
}

func TestRequestWithoutLogin(t *testing.T) {
	url := startServer(t, common.ServerConfig{Shards: memoryShard()})

	s, err := client.NewRPCStore(100, common.ClientConfig{Endpoints: []string{url}, TimeoutSecond: 5},
		http.NewHttpClientTransport(), serializer.NewJSONSerializer())
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.GetEntity("ent1")
	assert.Equal(t, db.RetCUnauthorized, db.CodeOf(err))
}

func TestLoginRequired(t *testing.T) {
	hash, err := server.HashPassword("secret")
	require.NoError(t, err)
	url := startServer(t, common.ServerConfig{
		Shards: memoryShard(),
		Users:  map[string]string{"alice": hash},
	})

	_, err = connect(t, url, 100, "alice", "wrong")
	assert.Equal(t, db.RetCUnauthorized, db.CodeOf(err))

	s, err := connect(t, url, 100, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.User())

	e, err := s.CreateEntity(db.Entity{Name: "demo", Kind: db.KindProject})
	require.NoError(t, err)
	got, found, err := s.GetEntity(e.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, e, got)
}

func TestUnknownShard(t *testing.T) {
	url := startServer(t, common.ServerConfig{Shards: memoryShard()})

	s, err := connect(t, url, 999, "alice", "")
	require.NoError(t, err)

	_, _, err = s.GetEntity("ent1")
	assert.Equal(t, db.RetCNotFound, db.CodeOf(err))
}

func TestErrorCodesAreKept(t *testing.T) {
	url := startServer(t, common.ServerConfig{Shards: memoryShard()})
	s, err := connect(t, url, 100, "alice", "")
	require.NoError(t, err)

	project, err := s.CreateEntity(db.Entity{Name: "demo", Kind: db.KindProject})
	require.NoError(t, err)
	table, err := s.CreateTable(project.ID, db.Schema{Name: "log", Columns: []db.Column{{Name: "user", Type: db.ColumnTUserID}}})
	require.NoError(t, err)

	_, err = s.StoreRows(table.ID, db.RowSet{
		Headers: []db.Column{{Name: "user"}},
		Rows:    []db.Row{{Values: []db.Value{db.StringValue("alice")}}},
		Etag:    "stale",
	})
	assert.Equal(t, db.RetCConflict, db.CodeOf(err))

	_, err = s.QueryTable("ent404", db.Query{})
	assert.Equal(t, db.RetCNotFound, db.CodeOf(err))
}

func TestMetricsEndpoint(t *testing.T) {
	url := startServer(t, common.ServerConfig{Shards: memoryShard()})
	s, err := connect(t, url, 100, "alice", "")
	require.NoError(t, err)
	_, _, err = s.GetEntity("ent1")
	require.NoError(t, err)

	resp, err := nethttp.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `dcheck_requests_total{type="getEntity"}`)
}

func TestSeedAndSQLitePersistence(t *testing.T) {
	dir := t.TempDir()
	seedFile := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(strings.TrimSpace(`
projects:
  - id: syn100
    name: Demo
    children:
      - id: syn123
        name: data.csv
        kind: file
`)), 0o644))

	config := common.ServerConfig{
		Shards:   []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalSQLite}},
		DataDir:  dir,
		SeedFile: seedFile,
		LogLevel: "error",
	}

	// first run: seed and create a table
	tr := http.NewHttpServerTransport()
	srv := server.NewRPCServer(config, tr, serializer.NewJSONSerializer())
	require.NoError(t, srv.Init())
	ts := httptest.NewServer(tr.(nethttp.Handler))

	s, err := connect(t, ts.URL, 100, "alice", "")
	require.NoError(t, err)
	file, found, err := s.GetEntity("syn123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "syn100", file.ParentID)
	table, err := s.CreateTable("syn100", db.Schema{Name: "log", Columns: []db.Column{{Name: "user", Type: db.ColumnTUserID}}})
	require.NoError(t, err)

	ts.Close()
	require.NoError(t, srv.Shutdown(context.Background()))

	// second run: seeding is skipped, the table is still there
	url := startServer(t, config)
	s, err = connect(t, url, 100, "alice", "")
	require.NoError(t, err)
	tables, err := s.ListChildren("syn100", db.KindTable)
	require.NoError(t, err)
	assert.Equal(t, []db.Entity{table}, tables)
}
