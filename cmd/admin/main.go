package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"stockroom/internal/domain/item"
	"stockroom/internal/infrastructure/store"
	"stockroom/internal/logging"
	"stockroom/internal/shared/config"
)

const usage = `Stockroom Admin CLI - Inspect and edit the item collection

Usage:
  admin <command> [options]

Commands:
  list      Print the current items, newest first
  watch     Print every snapshot of the live query until interrupted
  add       Create an item
  delete    Delete an item by id

The store is selected with the same environment variables as the API
(STORE_BACKEND, STORE_COLLECTION, DB_*, FIREBASE_*).

Examples:
  # List items in the configured store
  admin list

  # Follow changes as they happen
  admin watch

  # Add an item
  admin add --name="Hex bolts" --quantity=40 --price=0.15 --category=Hardware

  # Delete an item
  admin delete --id=01J9Z3K6Q8
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	var err error
	switch command {
	case "list":
		err = runList(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "add":
		err = runAdd(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openService loads configuration and connects to the configured store.
func openService(ctx context.Context) (*item.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewText(os.Stderr, cfg.Server.LogLevel)

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return item.NewService(st.Collection, logger), st.Close, nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "How long to wait for the first snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc, closeStore, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	items, err := svc.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	printItems(os.Stdout, items)
	return nil
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closeStore, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sub := svc.Subscribe(ctx)
	defer sub.Cancel()

	for items, err := range sub.All(ctx) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("live query failed: %w", err)
		}
		fmt.Printf("\n=== %s (%d items) ===\n", time.Now().Format(time.TimeOnly), len(items))
		printItems(os.Stdout, items)
	}
	return nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)

	name := fs.String("name", "", "Item name (required)")
	quantity := fs.Int("quantity", 0, "Units in stock")
	price := fs.Float64("price", 0, "Unit price")
	category := fs.String("category", "", "Free-form category")

	fs.Usage = func() {
		fmt.Println("Usage: admin add [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	params := item.CreateParams{Name: *name, Quantity: *quantity, Price: *price, Category: *category}
	if err := params.Validate(); err != nil {
		fs.Usage()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, closeStore, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := svc.Create(ctx, params.NewItem(time.Now()))
	if err != nil {
		return err
	}

	fmt.Printf("Created item %s\n", id)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Item ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id == "" {
		fmt.Println("Error: must specify --id")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, closeStore, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := svc.Delete(ctx, *id); err != nil {
		return err
	}

	fmt.Printf("Deleted item %s\n", *id)
	return nil
}

func printItems(w io.Writer, items []item.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tCATEGORY\tCREATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\t%s\n",
			it.ID, it.Name, it.Quantity, it.Price, it.Category, it.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}
