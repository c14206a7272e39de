package internal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTCreateEntity CommandType = iota // Create a project, folder or file.
	CommandTCreateTable                     // Create a table below a project or folder.
	CommandTStoreRows                       // Append or (conditionally) update table rows.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTCreateEntity:
		return "CreateEntity"
	case CommandTCreateTable:
		return "CreateTable"
	case CommandTStoreRows:
		return "StoreRows"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTCreateEntity:
		return db.FeatureCreateEntity, nil
	case CommandTCreateTable:
		return db.FeatureCreateTable, nil
	case CommandTStoreRows:
		return db.FeatureStoreRows, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type CommandType
	// Target is the parent id (CreateTable) or the table id (StoreRows), empty for CreateEntity
	Target string
	Body   CommandBody
}

// CommandBody holds the structured payload of a command.
// Only the field matching the command type is set.
type CommandBody struct {
	Entity *db.Entity `json:"entity,omitempty"`
	Schema *db.Schema `json:"schema,omitempty"`
	Set    *db.RowSet `json:"set,omitempty"`
}

// headerSize is the size of the fixed command header (type + target length)
const headerSize = 1 + 4

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for target length (big endian),
// N bytes for target data,
// N bytes for the JSON encoded body
func (command *Command) Serialize() ([]byte, error) {
	body, err := json.Marshal(command.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", command.Type, err)
	}

	result := make([]byte, headerSize+len(command.Target)+len(body))
	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:headerSize], uint32(len(command.Target)))
	copy(result[headerSize:], command.Target)
	copy(result[headerSize+len(command.Target):], body)
	return result, nil
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	targetLen := binary.BigEndian.Uint32(data[1:headerSize])
	if len(data) < headerSize+int(targetLen) {
		return fmt.Errorf("data too short for target of length %d", targetLen)
	}
	command.Target = string(data[headerSize : headerSize+int(targetLen)])

	command.Body = CommandBody{}
	body := data[headerSize+int(targetLen):]
	if len(body) == 0 {
		return fmt.Errorf("missing body for %s command", command.Type)
	}
	if err := json.Unmarshal(body, &command.Body); err != nil {
		return fmt.Errorf("invalid body for %s command: %w", command.Type, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Command Results
// --------------------------------------------------------------------------

// CommandResult is the JSON payload of a successful command (sm.Result.Data)
type CommandResult struct {
	Entity db.Entity `json:"entity"`
	Etag   string    `json:"etag,omitempty"`
}
