package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/ValentinKolb/dCheck/rpc/serializer"
	"github.com/ValentinKolb/dCheck/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	registry   gometrics.Registry

	mu    sync.RWMutex
	token string
	user  string
}

func (a *rpcClientAdapter) session() (token string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// invokeRPCRequest is a helper function used by the RPC client to send requests.
// It adds the session token, measures the round trip and checks that the response
// has the type of the request.
//
// Errors are always *db.Error: transport failures are reported as RetCUnavailable,
// errors of the server keep their return code.
func (a *rpcClientAdapter) invokeRPCRequest(req *common.Message) (*common.Message, error) {
	start := time.Now()
	defer func() {
		latency := a.registry.GetOrRegister("rpc."+req.MsgType.String(), newLatencyHistogram).(gometrics.Histogram)
		latency.Update(int64(time.Since(start)))
	}()

	if req.MsgType != common.MsgTLogin {
		req.Token = a.session()
	}

	// Serialize the request
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, db.Errorf(db.RetCInternalError, "RPC - failed to serialize request: %v", err)
	}

	// Send the request, writes are never repeated by the transport
	respBytes, err := a.transport.Send(a.shardId, reqBytes, !req.MsgType.IsWrite())
	if err != nil {
		gometrics.GetOrRegisterCounter("rpc.unavailable", a.registry).Inc(1)
		return nil, db.Errorf(db.RetCUnavailable, "RPC - %s: %v", req.MsgType, err)
	}

	// Deserialize the response
	resp := &common.Message{}
	if err = a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, db.Errorf(db.RetCInternalError, "RPC - failed to deserialize response: %v", err)
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return nil, err
	}
	if resp.MsgType == common.MsgTError {
		return nil, db.NewError(db.RetCInternalError, "RPC - error response without message")
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, db.Errorf(db.RetCInternalError, "RPC - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}

// newLatencyHistogram creates the histogram of one RPC type (in nanoseconds).
// Timers are not used, they start a meter goroutine that never stops.
func newLatencyHistogram() gometrics.Histogram {
	return gometrics.NewHistogram(gometrics.NewUniformSample(1028))
}

// nonNil returns *p or the zero value if p is nil
func nonNil[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// formatDuration formats a duration in nanoseconds as milliseconds
func formatDuration(ns float64) string {
	return fmt.Sprintf("%.2fms", ns/float64(time.Millisecond))
}
