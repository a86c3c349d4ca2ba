// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/go-socks/socks"
	"github.com/gorilla/websocket"
)

// RPCConfig describes how to connect to the websocket RPC endpoint of a
// btcd-compatible node.
type RPCConfig struct {
	// Host is the host:port of the RPC server.
	Host string

	// Endpoint is the websocket path on the server.  It defaults to "ws".
	Endpoint string

	// User and Pass are the basic authentication credentials.
	User string
	Pass string

	// Certificates holds PEM encoded certificates the server certificate
	// must chain to.  The system roots are used when it is empty.
	Certificates []byte

	// DisableTLS connects over plain ws.
	DisableTLS bool

	// Proxy, when set, routes the connection through a SOCKS5 proxy.
	Proxy *socks.Proxy

	// RequestTimeout bounds one request and its response.
	RequestTimeout time.Duration
}

// RPCFetcher resolves previous outputs with getrawtransaction calls over a
// websocket JSON-RPC connection.  The connection is dialled on first use and
// redialled after a failure.  Requests are serialized over it.
type RPCFetcher struct {
	cfg    RPCConfig
	dialer websocket.Dialer
	cache  *txCache
	nextID atomic.Uint64

	mtx      sync.Mutex
	conn     *websocket.Conn
	shutdown bool
}

// Ensure RPCFetcher implements the fetcher interfaces.
var (
	_ TxSource       = (*RPCFetcher)(nil)
	_ ContextFetcher = (*RPCFetcher)(nil)
)

// NewRPCFetcher returns a fetcher for the server described by cfg.  No
// connection is made until the first lookup.
func NewRPCFetcher(cfg *RPCConfig) (*RPCFetcher, error) {
	c := *cfg
	if c.Endpoint == "" {
		c.Endpoint = "ws"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.RequestTimeout}
	if !c.DisableTLS {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if len(c.Certificates) > 0 {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(c.Certificates) {
				return nil, errors.New("no valid certificates " +
					"in RPC certificate data")
			}
			tlsConfig.RootCAs = pool
		}
		dialer.TLSClientConfig = tlsConfig
	}
	if c.Proxy != nil {
		dialer.NetDial = c.Proxy.Dial
	}

	return &RPCFetcher{
		cfg:    c,
		dialer: dialer,
		cache:  newTxCache(),
	}, nil
}

// dial opens the websocket connection.
func (f *RPCFetcher) dial() (*websocket.Conn, error) {
	scheme := "wss"
	if f.cfg.DisableTLS {
		scheme = "ws"
	}
	url := fmt.Sprintf("%s://%s/%s", scheme, f.cfg.Host, f.cfg.Endpoint)

	login := f.cfg.User + ":" + f.cfg.Pass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	requestHeader := make(http.Header)
	requestHeader.Add("Authorization", auth)

	conn, resp, err := f.dialer.Dial(url, requestHeader)
	if err != nil {
		if !errors.Is(err, websocket.ErrBadHandshake) || resp == nil {
			return nil, err
		}

		// The server rejected the upgrade.  Report its status, which
		// says whether the credentials were wrong.
		return nil, fmt.Errorf("websocket handshake with %s failed: %s",
			url, resp.Status)
	}

	log.Debugf("Connected to RPC server %s", url)
	return conn, nil
}

// call sends a single request and waits for the response carrying its id.
// The connection is dropped on any transport failure.
func (f *RPCFetcher) call(ctx context.Context, method string,
	params []interface{}) (json.RawMessage, error) {

	id := f.nextID.Add(1)
	req, err := btcjson.NewRequest(btcjson.RpcVersion1, id, method, params)
	if err != nil {
		return nil, err
	}
	marshalled, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.shutdown {
		return nil, ErrClientShutdown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.conn == nil {
		conn, err := f.dial()
		if err != nil {
			return nil, err
		}
		f.conn = conn
	}

	deadline := time.Now().Add(f.cfg.RequestTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	resp, err := f.roundTrip(marshalled, id, deadline)
	if err != nil {
		f.conn.Close()
		f.conn = nil
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == btcjson.ErrRPCNoTxInfo {
			return nil, fmt.Errorf("%s: %v: %w", method, resp.Error,
				ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", method, resp.Error)
	}
	return resp.Result, nil
}

// roundTrip writes a marshalled request and reads messages until the
// response with the passed id arrives.  Notifications and stale responses
// are skipped.
func (f *RPCFetcher) roundTrip(marshalled []byte, id uint64,
	deadline time.Time) (*btcjson.Response, error) {

	if err := f.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := f.conn.WriteMessage(websocket.TextMessage, marshalled); err != nil {
		return nil, err
	}
	if err := f.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	for {
		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		var resp btcjson.Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Debugf("Ignoring malformed RPC message: %v", err)
			continue
		}
		if !responseHasID(&resp, id) {
			continue
		}
		return &resp, nil
	}
}

// responseHasID reports whether resp answers the request with the passed id.
// JSON numbers decode as float64.
func responseHasID(resp *btcjson.Response, id uint64) bool {
	if resp.ID == nil {
		return false
	}
	switch v := (*resp.ID).(type) {
	case float64:
		return v == float64(id)
	case string:
		return v == strconv.FormatUint(id, 10)
	}
	return false
}

// FetchTx asks the node for the raw transaction with the passed hash.
func (f *RPCFetcher) FetchTx(ctx context.Context, txHash *chainhash.Hash) (*wire.MsgTx, error) {
	result, err := f.call(ctx, "getrawtransaction",
		[]interface{}{txHash.String(), 0})
	if err != nil {
		return nil, err
	}

	var txHex string
	if err := json.Unmarshal(result, &txHex); err != nil {
		return nil, fmt.Errorf("unexpected getrawtransaction result: %w",
			err)
	}
	txBytes, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("failed to deserialize tx: %w", err)
	}
	return tx, nil
}

// FetchPrevOutputContext returns output op by asking the node for the
// transaction that created it.
func (f *RPCFetcher) FetchPrevOutputContext(ctx context.Context,
	op wire.OutPoint) (*wire.TxOut, error) {

	tx, err := cachedFetchTx(ctx, f, f.cache, &op.Hash)
	if err != nil {
		return nil, err
	}
	return selectOutput(tx, op)
}

// FetchPrevOutput is FetchPrevOutputContext bounded by the request timeout.
//
// NOTE: This is a part of the txscript.PrevOutputFetcher interface.
func (f *RPCFetcher) FetchPrevOutput(op wire.OutPoint) (*wire.TxOut, error) {
	ctx, cancel := context.WithTimeout(context.Background(),
		f.cfg.RequestTimeout)
	defer cancel()

	return f.FetchPrevOutputContext(ctx, op)
}

// Close drops the connection.  Requests issued afterwards fail with
// ErrClientShutdown.
func (f *RPCFetcher) Close() error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.shutdown = true
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

// String returns the address of the RPC server.
func (f *RPCFetcher) String() string {
	return "rpc " + f.cfg.Host
}
