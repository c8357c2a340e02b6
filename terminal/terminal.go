package terminal

import (
	"bufio"
	"fadingrose/rosy-ledger/service"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Term is the interactive ledger terminal. It talks to the ledger through
// a service.Client, in-process or over HTTP.
type Term struct {
	client service.Client
	cmds   *Commands
	stdout *transcriptWriter
	prompt string
	from   common.Address

	input *bufio.Reader
}

// NewTerminal reads commands from stdin and writes to stdout. Calls are
// sent from the from account unless a command overrides it.
func NewTerminal(client service.Client, stdin io.Reader, stdout io.Writer, from common.Address) *Term {
	cmds := LedgerCommands(client)
	t := &Term{
		client: client,
		cmds:   cmds,
		stdout: &transcriptWriter{w: stdout},
		prompt: "(rosy-ledger) ",
		from:   from,
		input:  bufio.NewReader(stdin),
	}
	return t
}

func (t *Term) Run() {
	for {
		t.stdout.Echo(t.prompt)
		cmdstr, err := t.promptFromInput()
		if err != nil && (err != io.EOF || cmdstr == "") {
			if err == io.EOF {
				fmt.Fprintln(t.stdout.w, "Exiting...")
				return
			}
			fmt.Fprintf(t.stdout.w, "Error reading input: %v\n", err)
			return
		}

		if strings.TrimSpace(cmdstr) == "" {
			continue
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if err == errExit {
				fmt.Fprintln(t.stdout.w, "Exiting...")
				return
			}
			fmt.Fprintf(t.stdout.w, "Command failed: %v\n", err)
		}
	}
}

// promptFromInput reads a line of input from the terminal
func (t *Term) promptFromInput() (string, error) {
	return t.input.ReadString('\n')
}
