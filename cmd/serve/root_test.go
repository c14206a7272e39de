package serve

import (
	"testing"

	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configure resets viper and the flags of the serve command and parses flags
func configure(t *testing.T, flags map[string]string) error {
	t.Helper()
	viper.Reset()
	ServeCmd.ResetFlags()
	hashPasswordCmd.ResetFlags()
	ServeCmd.ResetCommands()
	addFlags()
	for k, v := range flags {
		require.NoError(t, ServeCmd.Flags().Set(k, v))
	}
	return processConfig(ServeCmd, nil)
}

func TestProcessConfigLocal(t *testing.T) {
	err := configure(t, map[string]string{
		"shards":      "100=lstore, 200=sqlite",
		"users":       "alice=$2a$10$abc,bob=$2a$10$def",
		"session-ttl": "60",
		"seed":        "workspace.yaml",
	})
	require.NoError(t, err)

	assert.Equal(t, []common.ServerShard{
		{ShardID: 100, Type: common.ShardTypeLocalMemory},
		{ShardID: 200, Type: common.ShardTypeLocalSQLite},
	}, serveCmdConfig.Shards)
	assert.Equal(t, map[string]string{"alice": "$2a$10$abc", "bob": "$2a$10$def"}, serveCmdConfig.Users)
	assert.EqualValues(t, 60, serveCmdConfig.SessionTTLSeconds)
	assert.Equal(t, "workspace.yaml", serveCmdConfig.SeedFile)
	assert.Equal(t, "info", serveCmdConfig.LogLevel)
	assert.False(t, serveCmdConfig.HasRemoteShard())
}

func TestProcessConfigCluster(t *testing.T) {
	err := configure(t, map[string]string{
		"shards":          "100=dstore",
		"replica-id":      "node-2",
		"cluster-members": "node-1=localhost:63001,node-2=localhost:63002",
	})
	require.NoError(t, err)

	assert.Equal(t, hashID("node-2"), serveCmdConfig.ReplicaID)
	assert.Equal(t, "localhost:63002", serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID])
	assert.Len(t, serveCmdConfig.ClusterMembers, 2)
}

func TestProcessConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
	}{
		{"shard without type", map[string]string{"shards": "100"}},
		{"invalid shard id", map[string]string{"shards": "abc=lstore"}},
		{"invalid shard type", map[string]string{"shards": "100=lockmgr"}},
		{"invalid user", map[string]string{"users": "alice"}},
		{"remote without replica", map[string]string{"shards": "100=dstore"}},
		{"replica not in cluster", map[string]string{
			"shards":          "100=dstore",
			"replica-id":      "node-3",
			"cluster-members": "node-1=localhost:63001",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, configure(t, tt.flags))
		})
	}
}
