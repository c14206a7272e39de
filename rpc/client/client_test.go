package client_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCheck/lib/checkout"
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
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// testEnv is a server with a single in-memory workspace
type testEnv struct {
	url     string
	project db.Entity
	file    db.Entity
}

func newEnv(t *testing.T, ser func() serializer.IRPCSerializer) *testEnv {
	t.Helper()
	return newEnvWith(t, ser, func(h nethttp.Handler) nethttp.Handler { return h })
}

// newEnvWith starts a server whose handler is wrapped by wrap
func newEnvWith(t *testing.T, ser func() serializer.IRPCSerializer, wrap func(nethttp.Handler) nethttp.Handler) *testEnv {
	t.Helper()
	tr := http.NewHttpServerTransport()
	srv := server.NewRPCServer(common.ServerConfig{
		Shards:   []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalMemory}},
		LogLevel: "error",
	}, tr, ser())
	require.NoError(t, srv.Init())

	ts := httptest.NewServer(wrap(tr.(nethttp.Handler)))
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, srv.Shutdown(context.Background()))
	})

	env := &testEnv{url: ts.URL}
	admin := env.connect(t, "admin", ser)
	var err error
	env.project, err = admin.CreateEntity(db.Entity{Name: "demo", Kind: db.KindProject})
	require.NoError(t, err)
	env.file, err = admin.CreateEntity(db.Entity{Name: "main.go", Kind: db.KindFile, ParentID: env.project.ID})
	require.NoError(t, err)
	return env
}

func (env *testEnv) connect(t *testing.T, user string, ser func() serializer.IRPCSerializer) *client.RPCStore {
	t.Helper()
	s, err := client.NewRPCStore(100, common.ClientConfig{
		Endpoints:     []string{env.url},
		TimeoutSecond: 5,
		RetryCount:    2,
	}, http.NewHttpClientTransport(), ser())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Login(user, ""))
	return s
}

func (env *testEnv) manager(t *testing.T, user string, ser func() serializer.IRPCSerializer) checkout.ICheckoutManager {
	s := env.connect(t, user, ser)
	return checkout.NewCheckoutManager(checkout.NewSession(s.User(), s), checkout.DefaultOptions())
}

var serializers = map[string]func() serializer.IRPCSerializer{
	"json": serializer.NewJSONSerializer,
	"gob":  serializer.NewGOBSerializer,
}

func TestCheckoutOverRPC(t *testing.T) {
	for name, ser := range serializers {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t, ser)
			alice, bob := env.manager(t, "alice", ser), env.manager(t, "bob", ser)

			_, err := alice.Checkout(env.file.ID)
			require.NoError(t, err)

			res, err := bob.Checkout(env.file.ID)
			assert.ErrorIs(t, err, checkout.ErrAlreadyLocked)
			assert.Equal(t, "alice", res.Record.User)

			_, err = bob.Checkin(env.file.ID, "", false)
			assert.ErrorIs(t, err, checkout.ErrNoOpenLock)

			_, err = alice.Checkin(env.file.ID, "done", false)
			require.NoError(t, err)

			records, err := bob.Log(env.file.ID, false)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.False(t, records[0].Open())
			require.NotNil(t, records[0].Message)
			assert.Equal(t, "done", *records[0].Message)
		})
	}
}

func TestConcurrentCheckinsOverRPC(t *testing.T) {
	ser := serializer.NewJSONSerializer
	env := newEnv(t, ser)

	_, err := env.manager(t, "alice", ser).Checkout(env.file.ID)
	require.NoError(t, err)

	// several processes of alice race to check in the same lock
	const processes = 8
	managers := make([]checkout.ICheckoutManager, processes)
	for i := range managers {
		managers[i] = env.manager(t, "alice", ser)
	}

	var wg sync.WaitGroup
	errs := make([]error, processes)
	for i, mgr := range managers {
		wg.Add(1)
		go func(i int, mgr checkout.ICheckoutManager) {
			defer wg.Done()
			_, errs[i] = mgr.Checkin(env.file.ID, "done", false)
		}(i, mgr)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, checkout.ErrConflict), errors.Is(err, checkout.ErrNoOpenLock):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	records, err := env.manager(t, "alice", ser).Log(env.file.ID, true)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUnavailableServer(t *testing.T) {
	s, err := client.NewRPCStore(100, common.ClientConfig{
		Endpoints:     []string{"http://127.0.0.1:1"},
		TimeoutSecond: 1,
		RetryCount:    1,
	}, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
	require.NoError(t, err)
	defer s.Close()

	err = s.Login("alice", "")
	assert.Equal(t, db.RetCUnavailable, db.CodeOf(err))

	mgr := checkout.NewCheckoutManager(checkout.NewSession("alice", s), checkout.DefaultOptions())
	_, err = mgr.Checkout("ent1")
	assert.ErrorIs(t, err, checkout.ErrNetwork)
	assert.True(t, checkout.IsRetryable(err))
}

func TestWriteStats(t *testing.T) {
	ser := serializer.NewJSONSerializer
	env := newEnv(t, ser)
	s := env.connect(t, "alice", ser)

	_, _, err := s.GetEntity(env.file.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.WriteStats(&buf))
	assert.Regexp(t, `rpc\.getEntity\s+calls=1\s`, buf.String())
	assert.Contains(t, buf.String(), "rpc.login")
}

func TestSlowWriteIsNotRepeated(t *testing.T) {
	ser := serializer.NewJSONSerializer

	// the first row write is applied, but its response arrives after the client timeout
	var once sync.Once
	slowWrite := func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
			if bytes.Contains(body, []byte(`"storeRows"`)) {
				once.Do(func() { time.Sleep(1500 * time.Millisecond) })
			}
		})
	}
	env := newEnvWith(t, ser, slowWrite)

	s, err := client.NewRPCStore(100, common.ClientConfig{
		Endpoints:     []string{env.url},
		TimeoutSecond: 1,
		RetryCount:    3,
	}, http.NewHttpClientTransport(), ser())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Login("alice", ""))

	mgr := checkout.NewCheckoutManager(checkout.NewSession("alice", s), checkout.DefaultOptions())
	_, err = mgr.Checkout(env.file.ID)
	assert.ErrorIs(t, err, checkout.ErrNetwork)

	// the write happened exactly once
	records, err := env.manager(t, "bob", ser).Log(env.file.ID, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Open())
	assert.Equal(t, "alice", records[0].User)
}
