// Package rpcgateway implements the RPC Gateway (§4 C1): a JSON-RPC 2.0
// client that rotates across a chain's configured endpoints and exposes the
// fixed set of calls the rest of the indexer needs, independent of which
// endpoint answered.
//
// Grounded on zk/syncer.L1Syncer's multi-etherman rotation
// (getNextEtherman, IEtherman) generalized from "one of N L1 RPC
// endermans" to "one of N endpoints for one chain," and on the method
// inventory other_examples' ethkit.Interface lists for a standard
// Ethereum JSON-RPC client. The transport itself is net/http +
// encoding/json rather than a vendored JSON-RPC client library: nothing in
// the teacher or the rest of the pack wires a dedicated JSON-RPC client
// dependency, and rolling a minimal one here keeps every call site typed
// against this package's interface instead of a third party's.
package rpcgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/traitmeta/evmindexer/chainmodel"
	"github.com/traitmeta/evmindexer/errtype"
)

// RawBlock is the untouched eth_getBlockByNumber(..., true) result; the
// decode package is the only consumer that interprets its fields.
type RawBlock = json.RawMessage

// RawReceipt is an untouched eth_getTransactionReceipt result.
type RawReceipt = json.RawMessage

// RawTrace is an untouched debug_traceBlockByNumber (callTracer) result.
type RawTrace = json.RawMessage

// Gateway is the per-chain handle the rest of the indexer calls through.
// It never exposes which endpoint answered a given call.
type Gateway struct {
	chainName string
	endpoints []string
	next      atomic.Uint64
	client    *http.Client
	logger    log.Logger
}

// New builds a Gateway rotating across endpoints for chainName.
func New(chainName string, endpoints []string, logger log.Logger) *Gateway {
	return &Gateway{
		chainName: chainName,
		endpoints: endpoints,
		client:    &http.Client{Timeout: 8 * time.Second},
		logger:    logger,
	}
}

// getNextEndpoint rotates across configured endpoints the way
// L1Syncer.getNextEtherman rotates across ethermans, so no single endpoint
// takes every call.
func (g *Gateway) getNextEndpoint() string {
	n := g.next.Add(1)
	return g.endpoints[(n-1)%uint64(len(g.endpoints))]
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call issues a single JSON-RPC request against one endpoint, rotating to
// the next endpoint and retrying once per remaining endpoint on any failure
// (transport, envelope decode, or a JSON-RPC error response) before giving
// up with an ErrTransport.
func (g *Gateway) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < len(g.endpoints); attempt++ {
		endpoint := g.getNextEndpoint()
		if err := g.callOne(ctx, endpoint, method, params, out); err != nil {
			lastErr = err
			g.logger.Warn("rpc call failed, rotating endpoint", "chain", g.chainName, "endpoint", endpoint, "method", method, "err", err)
			continue
		}
		return nil
	}
	return errtype.Wrap(errtype.KindTransport, fmt.Errorf("all endpoints exhausted for %s: %w", method, lastErr))
}

func (g *Gateway) callOne(ctx context.Context, endpoint, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

// BlockNumber is eth_blockNumber: the endpoint's current head.
func (g *Gateway) BlockNumber(ctx context.Context) (int64, error) {
	var hexNum string
	if err := g.call(ctx, "eth_blockNumber", nil, &hexNum); err != nil {
		return 0, err
	}
	return parseHexInt(hexNum)
}

// BlockByNumber is eth_getBlockByNumber(number, true) — full transaction
// objects inline. Returns errtype.ErrAbsent if the endpoint has not yet
// reached that height.
func (g *Gateway) BlockByNumber(ctx context.Context, number int64) (RawBlock, error) {
	var raw json.RawMessage
	if err := g.call(ctx, "eth_getBlockByNumber", []interface{}{hexInt(number), true}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errtype.Wrap(errtype.KindAbsent, fmt.Errorf("block %d not yet available", number))
	}
	return raw, nil
}

// TransactionReceipt is eth_getTransactionReceipt.
func (g *Gateway) TransactionReceipt(ctx context.Context, hash chainmodel.Hash) (RawReceipt, error) {
	var raw json.RawMessage
	if err := g.call(ctx, "eth_getTransactionReceipt", []interface{}{hash.String()}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errtype.Wrap(errtype.KindAbsent, fmt.Errorf("receipt %s not yet available", hash))
	}
	return raw, nil
}

// TraceBlockByNumber is debug_traceBlockByNumber with the callTracer, the
// source of internal transactions (§4 C2).
func (g *Gateway) TraceBlockByNumber(ctx context.Context, number int64) (RawTrace, error) {
	var raw json.RawMessage
	tracerCfg := map[string]interface{}{"tracer": "callTracer"}
	if err := g.call(ctx, "debug_traceBlockByNumber", []interface{}{hexInt(number), tracerCfg}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Call is eth_call against a contract, the transport for every C6/C7
// on-chain view (name/symbol/decimals/totalSupply/balanceOf).
func (g *Gateway) Call(ctx context.Context, to chainmodel.Address, data []byte, blockNumber int64) ([]byte, error) {
	callObj := map[string]interface{}{
		"to":   to.String(),
		"data": "0x" + hexEncode(data),
	}
	var result string
	blockTag := "latest"
	if blockNumber > 0 {
		blockTag = hexInt(blockNumber)
	}
	if err := g.call(ctx, "eth_call", []interface{}{callObj, blockTag}, &result); err != nil {
		return nil, err
	}
	if result == "" || result == "0x" {
		return nil, errtype.Wrap(errtype.KindViewRevert, fmt.Errorf("eth_call to %s returned empty result", to))
	}
	return chainmodel.FromHex(result), nil
}

func hexInt(v int64) string { return fmt.Sprintf("0x%x", v) }

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

func parseHexInt(s string) (int64, error) {
	var v int64
	if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
		return 0, errtype.Wrap(errtype.KindDecode, fmt.Errorf("parsing hex int %q: %w", s, err))
	}
	return v, nil
}
