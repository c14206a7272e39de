package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ValentinKolb/dCheck/cmd/util"
	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/ValentinKolb/dCheck/rpc/server"
	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dCheck server",
		Long:    `Start the dCheck server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DCHECK_<flag> (e.g. DCHECK_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}

	hashPasswordCmd = &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password for the --users flag",
		Args:  cobra.NoArgs,
		RunE:  runHashPassword,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)
	addFlags()
}

// addFlags registers the subcommands and flags of the serve command
func addFlags() {
	ServeCmd.AddCommand(hashPasswordCmd)

	// add flags
	key := "shards"
	ServeCmd.Flags().String(key, "100=lstore", util.WrapString("Comma-separated list of workspaces (shards) to serve. Format: ID=TYPE where TYPE is one of: lstore (in memory), sqlite (persistent, stored in data-dir), dstore (replicated with raft)"))

	key = "rtt-millisecond"
	ServeCmd.Flags().Int(key, 100, util.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value*1) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.Flags().Int(key, 10, util.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.Flags().Int(key, 5, util.WrapString("(dstore) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.Flags().String(key, "data", util.WrapString("DataDir is the directory used for the raft snapshots and the sqlite databases"))

	key = "replica-id"
	ServeCmd.Flags().String(key, "", util.WrapString("(dstore) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.Flags().String(key, "", util.WrapString("(dstore) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.Flags().Int64(key, 5, util.WrapString("(dstore) Timeout in seconds of a raft proposal or read"))

	key = "endpoint"
	ServeCmd.Flags().String(key, "0.0.0.0:8080", util.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "users"
	ServeCmd.Flags().String(key, "", util.WrapString("Comma-separated list of users in the format 'alice=<bcrypt hash>,...' (see serve hash-password). Without users every login is accepted"))

	key = "session-ttl"
	ServeCmd.Flags().Int64(key, int64(server.DefaultSessionTTL/time.Second), util.WrapString("Seconds a session token stays valid after its last use"))

	key = "seed"
	ServeCmd.Flags().String(key, "", util.WrapString("YAML file with projects, folders and files that are created in every shard on startup"))

	key = "log-level"
	ServeCmd.Flags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "password"
	hashPasswordCmd.Flags().StringP(key, "p", "", util.WrapString("The password to hash. Prompted for if not set"))
}

// hashID maps a human readable replica name onto a raft replica id
func hashID(name string) uint64 {
	return xxhash.Sum64String(strings.TrimSpace(name))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	shardsConfig := viper.GetString("shards")
	serveCmdConfig.Shards = []common.ServerShard{}
	for _, shardConfig := range strings.Split(shardsConfig, ",") {
		id, kind, ok := strings.Cut(shardConfig, "=")
		if !ok {
			return fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", id, err)
		}

		// Parse shard type
		serverShardType, err := common.ParseShardType(kind)
		if err != nil {
			return err
		}

		serveCmdConfig.Shards = append(serveCmdConfig.Shards, common.ServerShard{
			ShardID: shardID,
			Type:    serverShardType,
		})
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.SessionTTLSeconds = viper.GetInt64("session-ttl")
	serveCmdConfig.SeedFile = viper.GetString("seed")

	// parse users
	serveCmdConfig.Users = map[string]string{}
	if users := viper.GetString("users"); users != "" {
		for _, entry := range strings.Split(users, ",") {
			name, hash, ok := strings.Cut(strings.TrimSpace(entry), "=")
			if !ok || name == "" || hash == "" {
				return fmt.Errorf("invalid user format: %s (expected NAME=BCRYPT_HASH)", entry)
			}
			serveCmdConfig.Users[name] = hash
		}
	}

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = hashID(id)
	} else if serveCmdConfig.HasRemoteShard() {
		// error only if cluster mode
		return fmt.Errorf("ReplicaId is required for remote shards")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			name, addr, ok := strings.Cut(member, "=")
			if !ok {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			serveCmdConfig.ClusterMembers[hashID(name)] = strings.TrimSpace(addr)
		}
	} else if serveCmdConfig.HasRemoteShard() {
		// error only if cluster mode
		return fmt.Errorf("ClusterMembers is required for remote shards")
	}

	// test if the replica id is in the cluster members (only for cluster mode)
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasRemoteShard() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the dCheck server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- serv.Serve() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		server.Logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(serv.Shutdown(shutdownCtx), <-errCh)
	}
}

// runHashPassword prints the bcrypt hash of a password
func runHashPassword(cmd *cobra.Command, _ []string) error {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("no password given and stdin is not a terminal")
		}
		_, _ = fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(b)
	}
	hash, err := server.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(util.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

}
