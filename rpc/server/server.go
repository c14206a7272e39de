package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/db/engines/memdb"
	"github.com/ValentinKolb/dCheck/lib/db/engines/sqlite"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/lib/store/dstore"
	"github.com/ValentinKolb/dCheck/lib/store/lstore"
	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/ValentinKolb/dCheck/rpc/serializer"
	"github.com/ValentinKolb/dCheck/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// seedAttempts is the number of tries to seed a remote shard (it may not have a leader yet)
const seedAttempts = 30

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create the RPC server
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	auth       *authenticator

	nodeHost  *dragonboat.NodeHost
	databases []db.WorkspaceDB // local databases, closed on shutdown
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// handle processes a single decoded request
func (s *RPCServer) handle(shardId uint64, msg *common.Message) *common.Message {
	// Login does not need a shard
	if msg.MsgType == common.MsgTLogin {
		token, err := s.auth.Login(msg.User, msg.Password)
		return common.NewLoginResponse(token, err)
	}

	user, err := s.auth.Authenticate(msg.Token)
	if err != nil {
		return common.NewErrorResponse(err)
	}

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)
	if !ok {
		return common.NewErrorResponse(db.Errorf(db.RetCNotFound, "shard %d not found", shardId))
	}

	Logger.Debugf("%s: %s %s (shard %d)", user, msg.MsgType, msg.ID, shardId)

	// Let the adapter handle the request
	return shard.Adapter.Handle(msg, shard.Store)
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		start := time.Now()
		var msg common.Message
		var respMsg *common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(db.Errorf(db.RetCInvalidOperation, "failed to deserialize request: %s", err))
		} else {
			respMsg = s.handle(shardId, &msg)
		}

		// Record metrics
		metrics.GetOrCreateCounter(fmt.Sprintf(`dcheck_requests_total{type=%q}`, msg.MsgType)).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`dcheck_request_duration_seconds{type=%q}`, msg.MsgType)).UpdateDuration(start)
		if respMsg.Code != db.RetCSuccess {
			metrics.GetOrCreateCounter(fmt.Sprintf(`dcheck_request_errors_total{type=%q,code=%q}`, msg.MsgType, respMsg.Code)).Inc()
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(
				db.Errorf(db.RetCInternalError, "failed to serialize response: %s", err),
			))
		}
		return val
	})
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

// createShard creates the store of a single shard
func (s *RPCServer) createShard(shardConfig common.ServerShard) (store.IStore, error) {
	switch shardConfig.Type {
	case common.ShardTypeLocalMemory:
		return lstore.NewLocalStore(memdb.NewMemDB), nil

	case common.ShardTypeLocalSQLite:
		if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
			return nil, err
		}
		database, err := sqlite.NewSQLiteDB(s.config.SQLitePath(shardConfig.ShardID))
		if err != nil {
			return nil, err
		}
		s.databases = append(s.databases, database)
		return lstore.NewLocalStore(func() db.WorkspaceDB { return database }), nil

	case common.ShardTypeRemote:
		if s.nodeHost == nil {
			return nil, fmt.Errorf("node host is nil, cannot create remote store")
		}

		// Start Raft for the shard
		err := s.nodeHost.StartConcurrentReplica(
			s.config.ClusterMembers,
			false,
			dstore.CreateStateMachineFactory(memdb.NewMemDB),
			s.config.ToDragonboatConfig(shardConfig.ShardID),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to start shard %v: %w", shardConfig.ShardID, err)
		}
		timeout := time.Duration(s.config.TimeoutSecond) * time.Second
		return dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout), nil

	default:
		return nil, fmt.Errorf("invalid shard type: %s", shardConfig.Type)
	}
}

// seed creates the entities of the seed file in a shard.
// Remote shards are retried until they have elected a leader.
func (s *RPCServer) seed(shardId uint64, st store.IStore, data []byte, retry bool) error {
	attempts := 1
	if retry {
		attempts = seedAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		var created int
		created, err = store.Seed(st, bytes.NewReader(data))
		if err == nil {
			Logger.Infof("seeded shard %d (%d entities created)", shardId, created)
			return nil
		}
		if i+1 < attempts {
			Logger.Debugf("seeding shard %d failed, retrying: %v", shardId, err)
			time.Sleep(time.Second)
		}
	}
	return fmt.Errorf("failed to seed shard %d: %w", shardId, err)
}

// Init initializes the loggers, the authentication and all shards and registers
// the request handler at the transport. It does not start the transport.
func (s *RPCServer) Init() error {
	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	s.auth = newAuthenticator(s.config.Users, time.Duration(s.config.SessionTTLSeconds)*time.Second)

	// Create the Dragonboat NodeHost
	if s.config.HasRemoteShard() {
		// Only create the NodeHost if we have remote shards
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Read the seed file once, it is applied to every shard
	var seedData []byte
	if s.config.SeedFile != "" {
		f, err := os.Open(s.config.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to open seed file: %w", err)
		}
		seedData, err = io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
	}

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of remote and or local shards.
		Every shard is an independent workspace.
	*/

	for _, shardConfig := range s.config.Shards {
		st, err := s.createShard(shardConfig)
		if err != nil {
			return err
		}
		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)

		if seedData == nil {
			continue
		}
		if shardConfig.Type == common.ShardTypeRemote {
			go func(id uint64, st store.IStore) {
				if err := s.seed(id, st, seedData, true); err != nil {
					Logger.Errorf("%v", err)
				}
			}(shardConfig.ShardID, st)
		} else if err := s.seed(shardConfig.ShardID, st, seedData, false); err != nil {
			return err
		}
	}

	Logger.Infof("dCheck setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until the server is shut down.
func (s *RPCServer) Serve() error {
	err := s.Init()
	if err != nil {
		s.closeStores()
		return err
	}
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport and closes all stores
func (s *RPCServer) Shutdown(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)
	return errors.Join(err, s.closeStores())
}

// closeStores closes the node host and all local databases
func (s *RPCServer) closeStores() error {
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	var errs []error
	for _, database := range s.databases {
		errs = append(errs, database.Close())
	}
	s.databases = nil
	return errors.Join(errs...)
}
