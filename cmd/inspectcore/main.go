// Command inspectcore lists the stored inspection orders or prints the
// protocol document of one order, optionally archiving it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"inspectcore/internal/config"
	"inspectcore/internal/core"
	"inspectcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspectcore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath string
		envFile    string
		orderID    string
		archive    bool
	)
	fs.StringVar(&configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&envFile, "env", ".env", "path to an optional .env file")
	fs.StringVar(&orderID, "order", "", "order id whose protocol is printed")
	fs.BoolVar(&archive, "archive", false, "also store the protocol in the archive (requires -order)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if archive && orderID == "" {
		_, _ = fmt.Fprintln(stderr, "-archive requires -order")
		return 2
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	svc, err := core.Open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open: %v\n", err)
		return 1
	}
	defer func() { _ = svc.Close() }()

	if orderID == "" {
		err = listOrders(ctx, svc, stdout)
	} else {
		err = printProtocol(ctx, svc, orderID, archive, stdout, stderr)
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, domain.UserMessage(err))
		return 1
	}
	return 0
}

func listOrders(ctx context.Context, svc *core.Service, w io.Writer) error {
	clients, err := svc.ListClients(ctx)
	if err != nil {
		return err
	}
	for _, c := range clients {
		orders, err := svc.ListOrders(ctx, c.ID)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s (%d orders)\n", c.Name, len(orders)); err != nil {
			return err
		}
		for _, o := range orders {
			if _, err := fmt.Fprintf(w, "  %s\t%s\t%s\n", o.ID, o.ObjectName, o.Status); err != nil {
				return err
			}
		}
	}
	return nil
}

func printProtocol(ctx context.Context, svc *core.Service, orderID string, archive bool, stdout, stderr io.Writer) error {
	doc, err := svc.AssembleProtocol(ctx, orderID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if !archive {
		return nil
	}
	archived, err := svc.ArchiveProtocol(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stderr, "archived %s\n", archived.Key)
	return err
}
