// Command migrate prepares a storage backend and copies the provider and
// campaign documents from a local config directory into it.
//
//	migrate [--config path] [--list] [--from dir]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/ignite/mailmerge/internal/config"
	"github.com/ignite/mailmerge/internal/domain"
	"github.com/ignite/mailmerge/internal/storage"
)

var documentKeys = []string{storage.ProviderKey, storage.CampaignKey}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	listOnly := flag.Bool("list", false, "list the documents present in the target backend")
	from := flag.String("from", "", "local directory holding <key>.json documents to import")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	// Open creates the schema for backends that need one.
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to %s storage", cfg.Storage.Type)

	if *listOnly {
		n := 0
		for _, key := range documentKeys {
			data, err := store.Backend.Get(ctx, key)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				log.Fatalf("get %s: %v", key, err)
			}
			fmt.Printf("  %s (%d bytes)\n", key, len(data))
			n++
		}
		fmt.Printf("Total: %d documents\n", n)
		return
	}

	if *from == "" {
		log.Println("Schema ready; nothing to import (use --from)")
		return
	}

	copied, err := importDocuments(ctx, storage.NewFileBackend(*from), store.Backend)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Printf("Done: %d documents imported from %s", copied, *from)
}

// importDocuments copies every known document present in src into dst.
func importDocuments(ctx context.Context, src, dst storage.Backend) (int, error) {
	copied := 0
	for _, key := range documentKeys {
		data, err := src.Get(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("  skip %s (not present)", key)
			continue
		}
		if err != nil {
			return copied, fmt.Errorf("read %s: %w", key, err)
		}
		if err := dst.Put(ctx, key, data); err != nil {
			return copied, fmt.Errorf("write %s: %w", key, err)
		}
		log.Printf("  ✓ %s", key)
		copied++
	}
	return copied, nil
}
