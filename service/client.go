package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Client is the ledger API used by the terminal. It is served in-process by
// LocalClient and remotely by HTTPClient.
type Client interface {
	Deploy(ctx context.Context, args *CallArgs) (*Result, error)
	Invoke(ctx context.Context, args *CallArgs) (*Result, error)
	View(ctx context.Context, args *CallArgs) (*Result, error)
	Account(ctx context.Context, addr common.Address) (*Account, error)
	Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error)
	Contracts(ctx context.Context) ([]ContractInfo, error)
}
