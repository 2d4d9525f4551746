package zabbix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	jsonRPCVersion     = "2.0"
	contentTypeJSONRPC = "application/json-rpc"
	defaultTimeout     = 10 * time.Second
)

// Client is a bare JSON-RPC client of the API endpoint.
type Client struct {
	// httpClient performs API requests.
	httpClient *http.Client
	// apiURL is the api_jsonrpc.php endpoint.
	apiURL string
	// lastID numbers requests.
	lastID atomic.Int64
}

// NewClient creates a client for apiURL. A nil httpClient gets a default with a timeout.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	Auth    string `json:"auth,omitempty"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call invokes method with params and decodes the result into out.
// An empty auth sends an unauthenticated request.
func (c *Client) Call(ctx context.Context, method, auth string, params, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		Auth:    auth,
		ID:      c.lastID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", contentTypeJSONRPC)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zabbix %s: %w", method, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var decoded rpcResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode %s response with status %s: %w", method, resp.Status, err)
	}

	if decoded.Error != nil {
		decoded.Error.Method = method

		return decoded.Error
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil
}
