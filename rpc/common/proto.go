package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Session token returned by Login, required for all other requests
	Token string `json:"token,omitempty"`

	// General fields
	ID     string     `json:"id,omitempty"`      // Used for: GetEntity, ListChildren, CreateTable, QueryTable, StoreRows
	Kind   db.Kind    `json:"kind,omitempty"`    // Used for: ListChildren
	Entity *db.Entity `json:"entity,omitempty"`  // Used for: CreateEntity (request + response), GetEntity, CreateTable (response)
	Schema *db.Schema `json:"schema,omitempty"`  // Used for: CreateTable
	Query  *db.Query  `json:"query,omitempty"`   // Used for: QueryTable
	Rows   *db.RowSet `json:"row_set,omitempty"` // Used for: StoreRows (request), QueryTable (response)

	// Login fields
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// Response only fields
	Ok       bool             `json:"ok,omitempty"`       // Used for: GetEntity responses
	Entities []db.Entity      `json:"entities,omitempty"` // Used for: ListChildren responses
	Etag     string           `json:"etag,omitempty"`     // Used for: StoreRows responses
	Info     *db.DatabaseInfo `json:"info,omitempty"`     // Used for: DBInfo responses
	Code     db.RetCode       `json:"code,omitempty"`     // Return code of the failed operation
	Err      string           `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
}

// SetError stores err in the message. The return code of a *db.Error is kept,
// so the client can restore the same error.
func (m *Message) SetError(err error) {
	if err == nil {
		return
	}
	var e *db.Error
	if errors.As(err, &e) {
		m.Code = e.Code
		m.Err = e.Msg
		return
	}
	m.Code = db.RetCInternalError
	m.Err = err.Error()
}

// Error returns the error stored in the message as *db.Error (or nil)
func (m *Message) Error() error {
	if m.Err == "" && m.Code == db.RetCSuccess {
		return nil
	}
	code := m.Code
	if code == db.RetCSuccess {
		code = db.RetCInternalError
	}
	return db.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// response creates a response of type t and stores err in it
func response(t MessageType, err error) *Message {
	msg := &Message{MsgType: t}
	msg.SetError(err)
	return msg
}

// NewLoginRequest creates a new Login request
func NewLoginRequest(user, password string) *Message {
	return &Message{
		MsgType:  MsgTLogin,
		User:     user,
		Password: password,
	}
}

// NewLoginResponse creates a new Login response
func NewLoginResponse(token string, err error) *Message {
	msg := response(MsgTLogin, err)
	msg.Token = token
	return msg
}

// NewCreateEntityRequest creates a new CreateEntity request
func NewCreateEntityRequest(e db.Entity) *Message {
	return &Message{
		MsgType: MsgTCreateEntity,
		Entity:  &e,
	}
}

// NewCreateEntityResponse creates a new CreateEntity response
func NewCreateEntityResponse(e db.Entity, err error) *Message {
	msg := response(MsgTCreateEntity, err)
	if err == nil {
		msg.Entity = &e
	}
	return msg
}

// NewGetEntityRequest creates a new GetEntity request
func NewGetEntityRequest(id string) *Message {
	return &Message{
		MsgType: MsgTGetEntity,
		ID:      id,
	}
}

// NewGetEntityResponse creates a new GetEntity response
func NewGetEntityResponse(e db.Entity, found bool, err error) *Message {
	msg := response(MsgTGetEntity, err)
	msg.Ok = found
	if found {
		msg.Entity = &e
	}
	return msg
}

// NewListChildrenRequest creates a new ListChildren request
func NewListChildrenRequest(parentID string, kind db.Kind) *Message {
	return &Message{
		MsgType: MsgTListChildren,
		ID:      parentID,
		Kind:    kind,
	}
}

// NewListChildrenResponse creates a new ListChildren response
func NewListChildrenResponse(children []db.Entity, err error) *Message {
	msg := response(MsgTListChildren, err)
	msg.Entities = children
	return msg
}

// NewCreateTableRequest creates a new CreateTable request
func NewCreateTableRequest(parentID string, schema db.Schema) *Message {
	return &Message{
		MsgType: MsgTCreateTable,
		ID:      parentID,
		Schema:  &schema,
	}
}

// NewCreateTableResponse creates a new CreateTable response
func NewCreateTableResponse(table db.Entity, err error) *Message {
	msg := response(MsgTCreateTable, err)
	if err == nil {
		msg.Entity = &table
	}
	return msg
}

// NewQueryTableRequest creates a new QueryTable request
func NewQueryTableRequest(tableID string, q db.Query) *Message {
	return &Message{
		MsgType: MsgTQueryTable,
		ID:      tableID,
		Query:   &q,
	}
}

// NewQueryTableResponse creates a new QueryTable response
func NewQueryTableResponse(set db.RowSet, err error) *Message {
	msg := response(MsgTQueryTable, err)
	if err == nil {
		msg.Rows = &set
	}
	return msg
}

// NewStoreRowsRequest creates a new StoreRows request
func NewStoreRowsRequest(tableID string, set db.RowSet) *Message {
	return &Message{
		MsgType: MsgTStoreRows,
		ID:      tableID,
		Rows:    &set,
	}
}

// NewStoreRowsResponse creates a new StoreRows response
func NewStoreRowsResponse(etag string, err error) *Message {
	msg := response(MsgTStoreRows, err)
	msg.Etag = etag
	return msg
}

// NewDBInfoRequest creates a new DBInfo request
func NewDBInfoRequest() *Message {
	return &Message{
		MsgType: MsgTDBInfo,
	}
}

// NewDBInfoResponse creates a new DBInfo response
func NewDBInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := response(MsgTDBInfo, err)
	if err == nil {
		msg.Info = &info
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	return response(MsgTError, err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTLogin:
		return "login"
	case MsgTCreateEntity:
		return "createEntity"
	case MsgTGetEntity:
		return "getEntity"
	case MsgTListChildren:
		return "listChildren"
	case MsgTCreateTable:
		return "createTable"
	case MsgTQueryTable:
		return "queryTable"
	case MsgTStoreRows:
		return "storeRows"
	case MsgTDBInfo:
		return "dbInfo"
	default:
		return "unknown"
	}
}

// IsWrite reports whether a request of this type changes the workspace.
// Writes are sent at most once, a lost response does not mean the write was not applied.
func (t MessageType) IsWrite() bool {
	switch t {
	case MsgTCreateEntity, MsgTCreateTable, MsgTStoreRows:
		return true
	default:
		return false
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	for candidate := MsgTSuccess; candidate <= MsgTDBInfo; candidate++ {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred
	MsgTLogin               // Exchange credentials for a session token

	// IStore operations

	MsgTCreateEntity // Create a project, folder or file
	MsgTGetEntity    // Get an entity by id
	MsgTListChildren // List the children of an entity
	MsgTCreateTable  // Create a table
	MsgTQueryTable   // Read all rows of a table
	MsgTStoreRows    // Append or (conditionally) update rows
	MsgTDBInfo       // Get information about the database
)
