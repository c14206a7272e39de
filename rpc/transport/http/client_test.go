package http

import (
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRetriesOnlyIdempotentRequests(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		requests.Add(1)
		w.WriteHeader(nethttp.StatusServiceUnavailable)
	}))
	defer ts.Close()

	tr := NewHttpClientTransport()
	require.NoError(t, tr.Connect(common.ClientConfig{
		Endpoints:     []string{ts.URL},
		TimeoutSecond: 1,
		RetryCount:    3,
	}))
	defer tr.Close()

	_, err := tr.Send(100, []byte("read"), true)
	assert.Error(t, err)
	assert.EqualValues(t, 3, requests.Load())

	requests.Store(0)
	_, err = tr.Send(100, []byte("write"), false)
	assert.Error(t, err)
	assert.EqualValues(t, 1, requests.Load())
}

func TestSendRoundRobin(t *testing.T) {
	var hits [2]atomic.Int32
	servers := make([]string, 2)
	for i := range servers {
		ts := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			hits[i].Add(1)
			_, _ = w.Write([]byte("ok"))
		}))
		defer ts.Close()
		servers[i] = ts.URL
	}

	tr := NewHttpClientTransport()
	require.NoError(t, tr.Connect(common.ClientConfig{Endpoints: servers, TimeoutSecond: 1, RetryCount: 1}))
	defer tr.Close()

	for i := 0; i < 4; i++ {
		resp, err := tr.Send(100, []byte("req"), true)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(resp))
	}
	assert.EqualValues(t, 2, hits[0].Load())
	assert.EqualValues(t, 2, hits[1].Load())
}
