package terminal

import (
	"context"
	"errors"
	"fadingrose/rosy-ledger/service"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errExit = errors.New("exit")

type cmdfunc func(t *Term, ctx context.Context, flags map[string]any, args []string) error

type command struct {
	aliases []string
	usage   string
	helpMsg string
	cmdFn   cmdfunc
	flags   []Flag
}

func (c command) exec(term *Term, ctx context.Context, argstr string) error {
	flags, args, err := parseArgs(c.flags, argstr)
	if err != nil {
		return err
	}
	return c.cmdFn(term, ctx, flags, args)
}

// Returns true if the command matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

type Commands struct {
	cmds   []command
	client service.Client
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

func callFlags() []Flag {
	return []Flag{
		FlagBase[common.Address]{"from", []string{"-f"}},
		FlagBase[*big.Int]{"value", []string{"-v"}},
		FlagBase[uint64]{"gas", []string{"-g"}},
		FlagBase[uint64]{"time", []string{"-t"}},
	}
}

func LedgerCommands(client service.Client) *Commands {
	c := &Commands{client: client}
	c.cmds = []command{
		{
			aliases: []string{".deploy", ".d"},
			usage:   ".deploy <contract> [params...]",
			helpMsg: "create a contract instance",
			cmdFn:   execDeploy,
			flags:   callFlags(),
		},
		{
			aliases: []string{".invoke", ".i"},
			usage:   ".invoke <address> [method [params...]]",
			helpMsg: "call a method, or send value when no method is given",
			cmdFn:   execInvoke,
			flags:   callFlags(),
		},
		{
			aliases: []string{".view", ".v"},
			usage:   ".view <address> <method> [params...]",
			helpMsg: "run a read-only call",
			cmdFn:   execView,
			flags:   []Flag{FlagBase[common.Address]{"from", []string{"-f"}}},
		},
		{
			aliases: []string{".balance", ".b"},
			usage:   ".balance <address>",
			helpMsg: "show an account",
			cmdFn:   execBalance,
		},
		{
			aliases: []string{".storage", ".s"},
			usage:   ".storage <address> <slot>",
			helpMsg: "show a storage slot",
			cmdFn:   execStorage,
		},
		{
			aliases: []string{".contracts", ".c"},
			usage:   ".contracts",
			helpMsg: "list the contract definitions",
			cmdFn:   execContracts,
		},
		{
			aliases: []string{".help", ".h"},
			usage:   ".help",
			helpMsg: "show this help",
			cmdFn:   execHelp,
		},
		{
			aliases: []string{".exit", ".quit", ".q"},
			usage:   ".exit",
			helpMsg: "leave the terminal",
			cmdFn: func(t *Term, ctx context.Context, flags map[string]any, args []string) error {
				return errExit
			},
		},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

func (t *Term) callArgs(flags map[string]any) *service.CallArgs {
	args := &service.CallArgs{From: t.from}
	if v, ok := flags["from"].(common.Address); ok {
		args.From = v
	}
	if v, ok := flags["value"].(*big.Int); ok {
		args.Value = (*hexutil.Big)(v)
	}
	if v, ok := flags["gas"].(uint64); ok {
		args.Gas = hexutil.Uint64(v)
	}
	if v, ok := flags["time"].(uint64); ok {
		args.Time = hexutil.Uint64(v)
	}
	return args
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func (t *Term) printResult(res *service.Result) {
	if res.Failed() {
		t.stdout.Echof("failed: %s: %s (gas %d)\n", res.Kind, res.Reason, res.GasUsed)
		return
	}
	t.stdout.Echof("ok (gas %d)\n", res.GasUsed)
	for _, out := range res.Outputs {
		t.stdout.Echof("  %s\n", out)
	}
	for _, n := range res.Notifications {
		t.stdout.Echof("  notification %s from %s\n", n.Name, n.Address.Hex())
	}
}

func execDeploy(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: .deploy <contract> [params...]")
	}
	call := t.callArgs(flags)
	call.Contract, call.Params = args[0], args[1:]
	res, err := t.client.Deploy(ctx, call)
	if err != nil {
		return err
	}
	if res.ContractAddress != nil {
		t.stdout.Echof("deployed %s at %s\n", call.Contract, res.ContractAddress.Hex())
	}
	t.printResult(res)
	return nil
}

func execInvoke(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: .invoke <address> [method [params...]]")
	}
	to, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	call := t.callArgs(flags)
	call.To = &to
	if len(args) > 1 {
		call.Method, call.Params = args[1], args[2:]
	}
	res, err := t.client.Invoke(ctx, call)
	if err != nil {
		return err
	}
	t.printResult(res)
	return nil
}

func execView(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .view <address> <method> [params...]")
	}
	to, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	call := t.callArgs(flags)
	call.To, call.Method, call.Params = &to, args[1], args[2:]
	res, err := t.client.View(ctx, call)
	if err != nil {
		return err
	}
	if res.Failed() {
		t.stdout.Echof("failed: %s: %s\n", res.Kind, res.Reason)
		return nil
	}
	t.stdout.Echo(strings.Join(res.Outputs, "\n") + "\n")
	return nil
}

func execBalance(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: .balance <address>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	acct, err := t.client.Account(ctx, addr)
	if err != nil {
		return err
	}
	t.stdout.Echof("%s nonce=%d", acct.Balance.ToInt(), uint64(acct.Nonce))
	if acct.Contract != "" {
		t.stdout.Echof(" contract=%s", acct.Contract)
	}
	t.stdout.Echo("\n")
	return nil
}

func execStorage(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: .storage <address> <slot>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	slot, ok := new(big.Int).SetString(args[1], 0)
	if !ok || slot.Sign() < 0 || slot.BitLen() > 256 {
		return fmt.Errorf("invalid slot %q", args[1])
	}
	value, err := t.client.Storage(ctx, addr, common.BigToHash(slot))
	if err != nil {
		return err
	}
	t.stdout.Echo(value.Hex() + "\n")
	return nil
}

func execContracts(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	infos, err := t.client.Contracts(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		t.stdout.Echof("%s(%s)\n", info.Name, strings.Join(info.Constructor, ", "))
		for _, m := range info.Methods {
			line := "  " + m.Signature
			if len(m.Outputs) > 0 {
				line += " returns (" + strings.Join(m.Outputs, ", ") + ")"
			}
			if m.Payable {
				line += " payable"
			}
			if m.ReadOnly {
				line += " view"
			}
			t.stdout.Echo(line + "\n")
		}
		for _, ev := range info.Events {
			t.stdout.Echof("  event %s\n", ev)
		}
	}
	return nil
}

func execHelp(t *Term, ctx context.Context, flags map[string]any, args []string) error {
	for _, cmd := range t.cmds.cmds {
		t.stdout.Echof("%-40s %s\n", cmd.usage, cmd.helpMsg)
	}
	t.stdout.Echo("flags: --from/-f <address> --value/-v <amount> --gas/-g <n> --time/-t <n>\n")
	return nil
}

func (c *Commands) Find(cmdstr string) (command, bool) {
	for _, cmd := range c.cmds {
		if cmd.match(cmdstr) {
			return cmd, true
		}
	}
	return command{}, false
}

// CallWithContext takes a command and a context that command should be executed in.
func (c *Commands) CallWithContext(cmdstr string, t *Term, ctx context.Context) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = vals[1]
	}
	cmd, ok := c.Find(cmdname)
	if !ok {
		return fmt.Errorf("unknown command %q, try .help", cmdname)
	}
	return cmd.exec(t, ctx, args)
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	return c.CallWithContext(cmdstr, t, context.Background())
}
