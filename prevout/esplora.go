// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prevout

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/go-socks/socks"
)

const (
	// DefaultRequestTimeout bounds a single remote request when the
	// configuration leaves it unset.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of times a failed request is
	// retried by default.
	DefaultMaxRetries = 3
)

// EsploraConfig holds the configuration for an EsploraFetcher.
type EsploraConfig struct {
	// URL is the base URL of the Esplora API (e.g.
	// https://blockstream.info/api).
	URL string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the maximum number of retries for failed requests.
	MaxRetries int

	// Proxy, when set, routes every connection through a SOCKS5 proxy.
	Proxy *socks.Proxy
}

// EsploraFetcher resolves previous outputs by downloading the transactions
// that created them from an Esplora REST API.
type EsploraFetcher struct {
	cfg        EsploraConfig
	httpClient *http.Client
	cache      *txCache

	quit     chan struct{}
	quitOnce sync.Once
}

// Ensure EsploraFetcher implements the fetcher interfaces.
var (
	_ TxSource       = (*EsploraFetcher)(nil)
	_ ContextFetcher = (*EsploraFetcher)(nil)
)

// NewEsploraFetcher returns a fetcher for the API described by cfg.
func NewEsploraFetcher(cfg *EsploraConfig) *EsploraFetcher {
	c := *cfg
	c.URL = strings.TrimRight(c.URL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.Proxy != nil {
		proxy := c.Proxy
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network,
			addr string) (net.Conn, error) {

			return proxy.Dial(network, addr)
		}
	}

	return &EsploraFetcher{
		cfg: c,
		httpClient: &http.Client{
			Timeout:   c.RequestTimeout,
			Transport: transport,
		},
		cache: newTxCache(),
		quit:  make(chan struct{}),
	}
}

// doRequest issues a GET for path, retrying failed round trips with a
// linear backoff.
func (f *EsploraFetcher) doRequest(ctx context.Context, path string) (*http.Response, error) {
	url := f.cfg.URL + path

	var lastErr error
	for i := 0; i <= f.cfg.MaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.quit:
			return nil, ErrClientShutdown
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := f.httpClient.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("API returned status %d",
				resp.StatusCode)
			resp.Body.Close()
		} else {
			lastErr = err
		}
		log.Debugf("Esplora request %s failed (attempt %d): %v", path,
			i+1, lastErr)

		if i < f.cfg.MaxRetries {
			select {
			case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-f.quit:
				return nil, ErrClientShutdown
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w",
		f.cfg.MaxRetries+1, lastErr)
}

// doGet returns the body of a successful GET for path.
func (f *EsploraFetcher) doGet(ctx context.Context, path string) ([]byte, error) {
	resp, err := f.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode,
		strings.TrimSpace(string(body)))
}

// FetchTx downloads the transaction with the passed hash.
func (f *EsploraFetcher) FetchTx(ctx context.Context, txHash *chainhash.Hash) (*wire.MsgTx, error) {
	body, err := f.doGet(ctx, "/tx/"+txHash.String()+"/hex")
	if err != nil {
		return nil, err
	}

	txBytes, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("failed to deserialize tx: %w", err)
	}
	return tx, nil
}

// FetchPrevOutputContext returns output op by downloading the transaction
// that created it.
func (f *EsploraFetcher) FetchPrevOutputContext(ctx context.Context,
	op wire.OutPoint) (*wire.TxOut, error) {

	tx, err := cachedFetchTx(ctx, f, f.cache, &op.Hash)
	if err != nil {
		return nil, err
	}
	return selectOutput(tx, op)
}

// FetchPrevOutput is FetchPrevOutputContext bounded by the retry budget of
// the fetcher.
//
// NOTE: This is a part of the txscript.PrevOutputFetcher interface.
func (f *EsploraFetcher) FetchPrevOutput(op wire.OutPoint) (*wire.TxOut, error) {
	ctx, cancel := context.WithTimeout(context.Background(),
		f.cfg.RequestTimeout*time.Duration(f.cfg.MaxRetries+1))
	defer cancel()

	return f.FetchPrevOutputContext(ctx, op)
}

// Close stops outstanding requests from being retried.  Requests issued
// afterwards fail with ErrClientShutdown.
func (f *EsploraFetcher) Close() error {
	f.quitOnce.Do(func() {
		close(f.quit)
	})
	f.httpClient.CloseIdleConnections()
	return nil
}

// String returns the base URL of the API.
func (f *EsploraFetcher) String() string {
	return "esplora " + f.cfg.URL
}
