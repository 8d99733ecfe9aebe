package rpcclient

import (
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultMaxConcurrentRequests bounds the requests ReadTables keeps in flight.
const DefaultMaxConcurrentRequests = 8

type RpcClient struct {
	client                *rpc.Client
	MaxConcurrentRequests int
}

func NewRpcClient(endpoint string) *RpcClient {
	client := rpc.New(endpoint)
	return &RpcClient{client: client, MaxConcurrentRequests: DefaultMaxConcurrentRequests}
}
