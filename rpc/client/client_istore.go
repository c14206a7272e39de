package client

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/ValentinKolb/dCheck/rpc/serializer"
	"github.com/ValentinKolb/dCheck/rpc/transport"
	gometrics "github.com/rcrowley/go-metrics"
)

// RPCStore is a store.IStore that forwards all operations to a dCheck server.
// Call Login before any other method.
type RPCStore struct {
	rpcClientAdapter
}

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := &RPCStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
			registry:   gometrics.NewRegistry(),
		},
	}

	// Return the RPC store
	return s, nil
}

// Login exchanges the credentials for a session token that is sent with every following request.
// Wrong credentials are reported as db.RetCUnauthorized.
func (i *RPCStore) Login(user, password string) error {
	resp, err := i.invokeRPCRequest(common.NewLoginRequest(user, password))
	if err != nil {
		return err
	}
	if resp.Token == "" {
		return db.NewError(db.RetCUnauthorized, "server returned no session token")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.token = resp.Token
	i.user = user
	Logger.Debugf("Logged in as %s", user)
	return nil
}

// User returns the name used for the last successful Login
func (i *RPCStore) User() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.user
}

// Close closes the transport
func (i *RPCStore) Close() error {
	return i.transport.Close()
}

// WriteStats writes the number of calls and the latencies of every RPC operation
func (i *RPCStore) WriteStats(w io.Writer) error {
	var lines []string
	i.registry.Each(func(name string, metric interface{}) {
		switch m := metric.(type) {
		case gometrics.Histogram:
			s := m.Snapshot()
			lines = append(lines, fmt.Sprintf("%-22s calls=%-4d mean=%-9s p99=%-9s max=%s",
				name, s.Count(), formatDuration(s.Mean()), formatDuration(s.Percentile(0.99)), formatDuration(float64(s.Max()))))
		case gometrics.Counter:
			lines = append(lines, fmt.Sprintf("%-22s count=%d", name, m.Snapshot().Count()))
		}
	})
	sort.Strings(lines)
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *RPCStore) CreateEntity(e db.Entity) (db.Entity, error) {
	resp, err := i.invokeRPCRequest(common.NewCreateEntityRequest(e))
	if err != nil {
		return db.Entity{}, err
	}
	return nonNil(resp.Entity), nil
}

func (i *RPCStore) GetEntity(id string) (db.Entity, bool, error) {
	resp, err := i.invokeRPCRequest(common.NewGetEntityRequest(id))
	if err != nil {
		return db.Entity{}, false, err
	}
	return nonNil(resp.Entity), resp.Ok, nil
}

func (i *RPCStore) ListChildren(parentID string, kind db.Kind) ([]db.Entity, error) {
	resp, err := i.invokeRPCRequest(common.NewListChildrenRequest(parentID, kind))
	if err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

func (i *RPCStore) CreateTable(parentID string, schema db.Schema) (db.Entity, error) {
	resp, err := i.invokeRPCRequest(common.NewCreateTableRequest(parentID, schema))
	if err != nil {
		return db.Entity{}, err
	}
	return nonNil(resp.Entity), nil
}

func (i *RPCStore) QueryTable(tableID string, q db.Query) (db.RowSet, error) {
	resp, err := i.invokeRPCRequest(common.NewQueryTableRequest(tableID, q))
	if err != nil {
		return db.RowSet{}, err
	}
	return nonNil(resp.Rows), nil
}

func (i *RPCStore) StoreRows(tableID string, set db.RowSet) (string, error) {
	resp, err := i.invokeRPCRequest(common.NewStoreRowsRequest(tableID, set))
	if err != nil {
		return "", err
	}
	return resp.Etag, nil
}

func (i *RPCStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invokeRPCRequest(common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	return nonNil(resp.Info), nil
}
