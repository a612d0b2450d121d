package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/logger"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportFile := exportCmd.String("file", "", "write JSON to this file instead of stdout")
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'export' or 'import' subcommands")
		os.Exit(1)
	}

	cfg := config.Load()
	// Logs go to stderr so an export on stdout stays clean JSON
	log := logger.New(cfg.AppEnv, cfg.LogLevel).Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer store.Close()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		out := io.Writer(os.Stdout)
		if *exportFile != "" {
			f, err := os.Create(*exportFile)
			if err != nil {
				log.Fatal().Err(err).Msg("create export file")
			}
			defer f.Close()
			out = f
		}
		n, err := exportLinks(ctx, store, out)
		if err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
		log.Info().Int("links", n).Msg("export complete")
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		f, err := os.Open(*importFile)
		if err != nil {
			log.Fatal().Err(err).Msg("open import file")
		}
		defer f.Close()
		imported, skipped, err := importLinks(ctx, store, f, log)
		if err != nil {
			log.Fatal().Err(err).Msg("import failed")
		}
		log.Info().Int("imported", imported).Int("skipped", skipped).Msg("import complete")
	default:
		fmt.Fprintln(os.Stderr, "expected 'export' or 'import' subcommands")
		os.Exit(1)
	}
}

func exportLinks(ctx context.Context, repo ports.LinkRepository, w io.Writer) (int, error) {
	links, err := repo.Dump(ctx)
	if err != nil {
		return 0, err
	}
	if links == nil {
		links = []domain.ShortLink{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return len(links), encoder.Encode(links)
}

// importLinks keeps codes, custom flags and creation times. Rows failing
// the creation rules and codes already present in the target are skipped,
// never overwritten.
func importLinks(ctx context.Context, repo ports.LinkRepository, r io.Reader, log zerolog.Logger) (imported, skipped int, err error) {
	var links []domain.ShortLink
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, 0, fmt.Errorf("decode: %w", err)
	}

	for _, l := range links {
		if err := validImport(l); err != nil {
			log.Warn().Err(err).Int64("id", l.ID).Str("code", l.Code).Msg("skipping invalid link")
			skipped++
			continue
		}

		link := &domain.ShortLink{
			Code:           l.Code,
			DestinationURL: l.DestinationURL,
			IsCustomAlias:  l.IsCustomAlias,
			CreatedAt:      l.CreatedAt.UTC(),
		}
		if link.CreatedAt.IsZero() {
			link.CreatedAt = time.Now().UTC()
		}

		err := repo.Create(ctx, link)
		switch {
		case errors.Is(err, domain.ErrCodeTaken):
			log.Info().Str("code", l.Code).Msg("skipping existing code")
			skipped++
		case err != nil:
			return imported, skipped, fmt.Errorf("import %s: %w", l.Code, err)
		default:
			imported++
		}
	}
	return imported, skipped, nil
}

// validImport applies the same rules as the create endpoint. Generated
// codes are six alphabet symbols, so the alias rule covers them too.
func validImport(l domain.ShortLink) error {
	if err := services.ValidateDestination(l.DestinationURL); err != nil {
		return err
	}
	return services.ValidateAlias(l.Code)
}
