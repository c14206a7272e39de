package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

var testHeaders = []db.Column{
	{Name: "user", Type: db.ColumnTUserID},
	{Name: "checked_in", Type: db.ColumnTDate},
	{Name: "message", Type: db.ColumnTString, MaxSize: 1000},
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Login request and response
		{MsgType: common.MsgTLogin, User: "alice", Password: "secret"},
		{MsgType: common.MsgTLogin, Token: "1b4e28ba-2fa1-11d2-883f-0016d3cca427"},

		// GetEntity response
		{
			MsgType: common.MsgTGetEntity,
			Token:   "token",
			Ok:      true,
			Entity:  &db.Entity{ID: "ent3", Name: "main.go", Kind: db.KindFile, ParentID: "ent2"},
		},

		// ListChildren response
		{
			MsgType: common.MsgTListChildren,
			Entities: []db.Entity{
				{ID: "ent2", Name: "src", Kind: db.KindFolder, ParentID: "ent1"},
				{ID: "ent5", Name: "checkout_log", Kind: db.KindTable, ParentID: "ent1"},
			},
		},

		// Conditional StoreRows request with null values
		{
			MsgType: common.MsgTStoreRows,
			ID:      "ent5",
			Rows: &db.RowSet{
				TableID: "ent5",
				Headers: testHeaders,
				Rows: []db.Row{{ID: 4, Values: []db.Value{
					db.StringValue("alice"),
					db.StringValue("1709285460000"),
					db.NullValue(),
				}}},
				Etag: "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			},
		},

		// QueryTable request
		{
			MsgType: common.MsgTQueryTable,
			ID:      "ent5",
			Query:   &db.Query{OrderBy: "checked_out", Descending: true},
		},

		// CreateTable request
		{
			MsgType: common.MsgTCreateTable,
			ID:      "ent1",
			Schema:  &db.Schema{Name: "checkout_log", Columns: testHeaders},
		},

		// DBInfo response
		{
			MsgType: common.MsgTDBInfo,
			Info: &db.DatabaseInfo{
				Entities:          4,
				Tables:            1,
				Rows:              2,
				DbType:            db.ImplSQLite,
				SupportedFeatures: []db.Feature{db.FeatureGetEntity, db.FeatureStoreRows},
				Metadata:          map[string]string{"path": "data/shard-100.db"},
			},
		},

		// Error response
		{
			MsgType: common.MsgTStoreRows,
			Code:    db.RetCConflict,
			Err:     "etag mismatch",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTDBInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestErrorSurvivesRoundTrip tests that a *db.Error keeps its code across the wire
func TestErrorSurvivesRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			resp := common.NewStoreRowsResponse("", db.NewError(db.RetCConflict, "etag mismatch"))
			data, err := serializer.Serialize(*resp)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if code := db.CodeOf(result.Error()); code != db.RetCConflict {
				t.Errorf("Expected code %s, got %s", db.RetCConflict, code)
			}
			if ok := common.NewStoreRowsResponse("etag", nil); ok.Error() != nil {
				t.Errorf("Expected no error, got %v", ok.Error())
			}
		})
	}
}

// TestInvalidData tests how the serializers handle corrupt data
func TestInvalidData(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"Empty data", []byte{}},
		{"Garbage", []byte{0xff, 0x00, 0x13, 0x37}},
		{"Unknown message type", []byte(`{"msg_type":"acquire"}`)},
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for _, tc := range testCases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				var msg common.Message
				if err := serializer.Deserialize(tc.data, &msg); err == nil {
					t.Errorf("Expected error but got none")
				}
			})
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("Expected serializer %s, got error %v", name, err)
		}
	}
	if _, err := ByName("binary"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}
}
