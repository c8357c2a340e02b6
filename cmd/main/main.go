package main

import (
	"context"
	"errors"
	"fadingrose/rosy-ledger/config"
	"fadingrose/rosy-ledger/contracts"
	"fadingrose/rosy-ledger/core"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/log"
	"fadingrose/rosy-ledger/service"
	"fadingrose/rosy-ledger/terminal"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := log.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openNode opens the store, the processor on top of it and applies the
// genesis allocation.
func openNode(cfg config.Config) (*core.Processor, error) {
	disk, err := rawdb.Open(cfg.Database.Backend, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pc := cfg.Processor()
	if cfg.Runtime.Trace {
		pc.Tracer = tracing.NewLogger()
	}
	p, err := core.NewProcessor(disk, contracts.NewRegistry(), pc)
	if err != nil {
		disk.Close()
		return nil, err
	}
	alloc, err := cfg.Genesis.Balances()
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := p.Genesis(alloc); err != nil {
		p.Close()
		return nil, fmt.Errorf("genesis: %w", err)
	}
	log.Info("Ledger opened", "backend", cfg.Database.Backend, "path", cfg.Database.Path, "lastTime", p.LastTime())
	return p, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	p, err := openNode(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.Server.Listen, Handler: service.NewServer(p)}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("Starting server", "listen", cfg.Server.Listen)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func repl(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	var from common.Address
	if s := c.String("from"); s != "" {
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid --from address %q", s)
		}
		from = common.HexToAddress(s)
	}

	var client service.Client
	if remote := c.String("remote"); remote != "" {
		client = service.NewHTTPClient(remote, nil)
	} else {
		p, err := openNode(cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		client = service.NewLocalClient(p)
	}
	terminal.NewTerminal(client, os.Stdin, os.Stdout, from).Run()
	return nil
}

func listContracts(c *cli.Context) error {
	for _, def := range contracts.NewRegistry().Definitions() {
		fmt.Println(def.Name)
		for _, m := range def.Methods {
			var attrs []string
			if m.Payable {
				attrs = append(attrs, "payable")
			}
			if m.ReadOnly {
				attrs = append(attrs, "view")
			}
			fmt.Printf("  %s %s\n", m.Signature(), strings.Join(attrs, " "))
		}
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "rosy-ledger",
		Usage: "A deterministic contract execution runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the ledger over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "Address to listen on, overrides [server] listen",
					},
				},
				Action: serve,
			},
			{
				Name:  "repl",
				Usage: "Interactive terminal on a local ledger or a remote server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "remote",
						Usage: "Server URL; the local ledger from the config is used when empty",
					},
					&cli.StringFlag{
						Name:  "from",
						Usage: "Default sender address",
					},
				},
				Action: repl,
			},
			{
				Name:   "contracts",
				Usage:  "List the built-in contract definitions",
				Action: listContracts,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal("Command failed", "err", err)
	}
}
