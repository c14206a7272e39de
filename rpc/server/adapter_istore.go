package server

import (
	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

// missing returns the error for a request without a required field
func missing(field string, t common.MessageType) *common.Message {
	return common.NewErrorResponse(db.Errorf(db.RetCInvalidOperation, "%s request without %s", t, field))
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse(db.NewError(db.RetCInternalError, "handler: store is nil"))
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTCreateEntity:
		if req.Entity == nil {
			return missing("entity", req.MsgType)
		}
		e, err := store.CreateEntity(*req.Entity)
		return common.NewCreateEntityResponse(e, err)
	case common.MsgTGetEntity:
		e, found, err := store.GetEntity(req.ID)
		return common.NewGetEntityResponse(e, found, err)
	case common.MsgTListChildren:
		children, err := store.ListChildren(req.ID, req.Kind)
		return common.NewListChildrenResponse(children, err)
	case common.MsgTCreateTable:
		if req.Schema == nil {
			return missing("schema", req.MsgType)
		}
		table, err := store.CreateTable(req.ID, *req.Schema)
		return common.NewCreateTableResponse(table, err)
	case common.MsgTQueryTable:
		var q db.Query
		if req.Query != nil {
			q = *req.Query
		}
		set, err := store.QueryTable(req.ID, q)
		return common.NewQueryTableResponse(set, err)
	case common.MsgTStoreRows:
		if req.Rows == nil {
			return missing("rows", req.MsgType)
		}
		etag, err := store.StoreRows(req.ID, *req.Rows)
		return common.NewStoreRowsResponse(etag, err)
	case common.MsgTDBInfo:
		info, err := store.GetDBInfo()
		return common.NewDBInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			db.Errorf(db.RetCUnsupportedOperation, "RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
