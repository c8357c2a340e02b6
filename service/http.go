package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// HTTPClient talks to a Server.
type HTTPClient struct {
	base string
	hc   *http.Client
}

// NewHTTPClient returns a client for the server at base, e.g.
// "http://127.0.0.1:8545". A nil hc uses http.DefaultClient.
func NewHTTPClient(base string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{base: strings.TrimRight(base, "/"), hc: hc}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		enc, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(enc)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return errors.New(e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) Deploy(ctx context.Context, args *CallArgs) (*Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPost, "/v1/deploy", args, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Invoke(ctx context.Context, args *CallArgs) (*Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPost, "/v1/invoke", args, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) View(ctx context.Context, args *CallArgs) (*Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPost, "/v1/view", args, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Account(ctx context.Context, addr common.Address) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.Hex(), nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *HTTPClient) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	var value common.Hash
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.Hex()+"/storage/"+slot.Hex(), nil, &value)
	return value, err
}

func (c *HTTPClient) Contracts(ctx context.Context) ([]ContractInfo, error) {
	var infos []ContractInfo
	if err := c.do(ctx, http.MethodGet, "/v1/contracts", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// parseSlot accepts a 0x-prefixed key of up to 32 bytes or a decimal slot
// number.
func parseSlot(s string) (common.Hash, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s)%2 == 1 {
			s = "0x0" + s[2:]
		}
		b, err := hexutil.Decode(s)
		if err != nil || len(b) > common.HashLength {
			return common.Hash{}, badRequest("invalid slot %q", s)
		}
		return common.BytesToHash(b), nil
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return common.Hash{}, badRequest("invalid slot %q", s)
	}
	return n.Bytes32(), nil
}
