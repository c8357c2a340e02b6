package service

import (
	"context"
	"errors"
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/core"
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/core/vm"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// ErrBadRequest marks call arguments that could not be turned into a
// message.
var ErrBadRequest = errors.New("bad request")

// LocalClient serves the Client API from a processor in the same process.
type LocalClient struct {
	p *core.Processor
}

func NewLocalClient(p *core.Processor) *LocalClient {
	return &LocalClient{p: p}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// message builds the message for args together with the entry point it
// targets, if one is known.
func (c *LocalClient) message(args *CallArgs, create bool) (*types.Message, *vm.Method, error) {
	msg := &types.Message{
		From:  args.From,
		Input: args.Input,
		Gas:   uint64(args.Gas),
		Time:  uint64(args.Time),
	}
	if args.Value != nil {
		v, overflow := uint256.FromBig(args.Value.ToInt())
		if overflow || args.Value.ToInt().Sign() < 0 {
			return nil, nil, badRequest("value %s out of range", args.Value)
		}
		msg.Value = v
	}

	var method *vm.Method
	if create {
		def, ok := c.p.Registry().ByName(args.Contract)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", vm.ErrUnknownContract, args.Contract)
		}
		msg.Contract = def.Name
		method = def.Constructor
	} else {
		if args.To == nil {
			return nil, nil, badRequest("missing call target")
		}
		to := *args.To
		msg.To, msg.Method = &to, args.Method
		if args.Method != "" {
			if def, ok := c.p.Registry().ByName(c.p.Account(to).Contract); ok {
				method, _ = def.Method(args.Method)
			}
		}
	}

	if len(msg.Input) == 0 && len(args.Params) > 0 {
		if method == nil {
			return nil, nil, badRequest("cannot encode parameters for unknown entry point %q", args.Method)
		}
		values, err := abi.ParseValues(method.Inputs, args.Params)
		if err != nil {
			return nil, nil, badRequest("%v", err)
		}
		if msg.Input, err = abi.Encode(method.Inputs, values...); err != nil {
			return nil, nil, badRequest("%v", err)
		}
	}
	return msg, method, nil
}

func result(receipt *types.Receipt, method *vm.Method) *Result {
	res := &Result{Receipt: receipt}
	if receipt.Failed() || method == nil || len(method.Outputs) == 0 {
		return res
	}
	values, err := abi.Decode(method.Outputs, receipt.Return)
	if err != nil {
		return res
	}
	for _, v := range values {
		res.Outputs = append(res.Outputs, abi.FormatValue(v))
	}
	return res
}

func (c *LocalClient) apply(ctx context.Context, args *CallArgs, create bool) (*Result, error) {
	msg, method, err := c.message(args, create)
	if err != nil {
		return nil, err
	}
	msg.AutoTime = msg.Time == 0
	receipt, err := c.p.Apply(ctx, msg)
	if err != nil {
		return nil, err
	}
	return result(receipt, method), nil
}

func (c *LocalClient) Deploy(ctx context.Context, args *CallArgs) (*Result, error) {
	return c.apply(ctx, args, true)
}

func (c *LocalClient) Invoke(ctx context.Context, args *CallArgs) (*Result, error) {
	return c.apply(ctx, args, false)
}

func (c *LocalClient) View(ctx context.Context, args *CallArgs) (*Result, error) {
	msg, method, err := c.message(args, false)
	if err != nil {
		return nil, err
	}
	receipt, err := c.p.View(ctx, msg)
	if err != nil {
		return nil, err
	}
	return result(receipt, method), nil
}

func (c *LocalClient) Account(ctx context.Context, addr common.Address) (*Account, error) {
	info := c.p.Account(addr)
	return &Account{
		Address:  info.Address,
		Balance:  (*hexutil.Big)(info.Balance.ToBig()),
		Nonce:    hexutil.Uint64(info.Nonce),
		Contract: info.Contract,
	}, nil
}

func (c *LocalClient) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	return c.p.Storage(addr, slot), nil
}

func (c *LocalClient) Contracts(ctx context.Context) ([]ContractInfo, error) {
	defs := c.p.Registry().Definitions()
	out := make([]ContractInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, describe(def))
	}
	return out, nil
}
