package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"anchorline.app/resolver/common/id"
	"anchorline.app/resolver/core/config"
	"anchorline.app/resolver/core/db"
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/engine"
	"anchorline.app/resolver/internal/mapper"
	"anchorline.app/resolver/internal/model"
	"anchorline.app/resolver/internal/store"
)

// resolve runs one record through the engine and prints the shortlist and
// gate decision without writing anything. The record comes from flags or,
// when -sender is omitted, as JSON on stdin in any shape the payload mapper
// understands.
func main() {
	var (
		sender      = flag.String("sender", "", "sender address (omit to read JSON from stdin)")
		senderName  = flag.String("name", "", "sender display name")
		subject     = flag.String("subject", "", "record subject")
		body        = flag.String("body", "", "record body")
		kind        = flag.String("kind", "correspondence", "source kind: correspondence or transcript")
		catalogPath = flag.String("catalog", "", "resolve against a local catalog export instead of the entities table")
		asJSON      = flag.Bool("json", false, "print the raw resolution as JSON")
	)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeResolve)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if err := id.Init(3); err != nil {
		fatal("failed to initialize id generator: %v", err)
	}

	rec, err := buildRecord(ctx, *sender, *senderName, *subject, *body, *kind)
	if err != nil {
		fatal("%v", err)
	}

	catalog, patterns := loadSnapshots(ctx, cfg, *catalogPath)

	// Deterministic strategies only: a dry run makes no network calls.
	eng := engine.New(engine.Config{
		AutoLinkThreshold: cfg.Resolver.AutoLinkThreshold,
		ShortlistFloor:    cfg.Resolver.ShortlistFloor,
		ShortlistSize:     cfg.Resolver.ShortlistSize,
		FreeMailDomains:   cfg.Resolver.FreeMailDomains,
		StaffDomains:      cfg.Resolver.StaffDomains,
	}, nil)

	res := eng.Resolve(ctx, rec, catalog, patterns)

	if *asJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fatal("failed to encode resolution: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	printResolution(rec, res)
}

func buildRecord(ctx context.Context, sender, senderName, subject, body, kind string) (*model.Record, error) {
	var canonical *mapper.CanonicalRecord

	if sender == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("parsing stdin as JSON: %w", err)
		}
		canonical, err = mapper.NewPayloadRecordMapper().Map(ctx, payload)
		if err != nil {
			return nil, err
		}
	} else {
		sourceKind := model.SourceKind(kind)
		if sourceKind != model.SourceKindCorrespondence && sourceKind != model.SourceKindTranscript {
			return nil, fmt.Errorf("unknown source kind %q", kind)
		}
		canonical = &mapper.CanonicalRecord{
			SenderAddress: sender,
			Subject:       subject,
			Body:          body,
			SourceKind:    sourceKind,
		}
		if senderName != "" {
			canonical.SenderName = &senderName
		}
	}

	occurredAt := canonical.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	recordID := id.New()
	return &model.Record{
		ID:               recordID,
		ShortID:          id.Ref("rec", recordID),
		SenderAddress:    canonical.SenderAddress,
		SenderName:       canonical.SenderName,
		Subject:          canonical.Subject,
		Body:             canonical.Body,
		SourceKind:       canonical.SourceKind,
		OccurredAt:       occurredAt,
		ResolutionStatus: model.RecordStatusPending,
	}, nil
}

// loadSnapshots connects to the database for catalog and patterns. With
// -catalog the entities come from the export file instead, and an
// unreachable database degrades to an empty pattern snapshot rather than
// aborting the dry run.
func loadSnapshots(ctx context.Context, cfg config.Config, catalogPath string) (*engine.CatalogSnapshot, *engine.PatternSnapshot) {
	database, dbErr := db.New(ctx, cfg.DB)
	if dbErr != nil && catalogPath == "" {
		fatal("failed to connect to database: %v", dbErr)
	}
	if database != nil {
		defer database.Close()
	}

	var catalog *engine.CatalogSnapshot
	if catalogPath != "" {
		entities, err := loadCatalogFile(ctx, catalogPath)
		if err != nil {
			fatal("failed to load catalog file: %v", err)
		}
		fmt.Fprintf(os.Stderr, "catalog: %d entities from %s\n", len(entities), catalogPath)
		catalog = engine.NewCatalogSnapshot(entities)
	} else {
		entities, err := store.NewStores(database.Pool()).Entities().ListActive(ctx)
		if err != nil {
			fatal("failed to list entities: %v", err)
		}
		fmt.Fprintf(os.Stderr, "catalog: %d active entities\n", len(entities))
		catalog = engine.NewCatalogSnapshot(entities)
	}

	if database == nil {
		fmt.Fprintf(os.Stderr, "patterns: none (database unavailable: %v)\n", dbErr)
		return catalog, engine.NewPatternSnapshot(nil)
	}

	patterns, err := store.NewStores(database.Pool()).Patterns().ListActive(ctx)
	if err != nil {
		fatal("failed to list patterns: %v", err)
	}
	fmt.Fprintf(os.Stderr, "patterns: %d active\n", len(patterns))
	return catalog, engine.NewPatternSnapshot(patterns)
}

// loadCatalogFile accepts either a top-level JSON array of entity rows or a
// {"entities": [...]} wrapper, in any shape the payload mapper understands.
func loadCatalogFile(ctx context.Context, path string) ([]model.Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		var wrapper struct {
			Entities []map[string]any `json:"entities"`
		}
		if err2 := json.Unmarshal(raw, &wrapper); err2 != nil || wrapper.Entities == nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		rows = wrapper.Entities
	}

	entityMapper := mapper.NewPayloadEntityMapper()
	entities := make([]model.Entity, 0, len(rows))
	for i, row := range rows {
		entity, err := entityMapper.Map(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entity.ID = int64(i + 1)
		entities = append(entities, *entity)
	}
	return entities, nil
}

func printResolution(rec *model.Record, res domain.Resolution) {
	fmt.Printf("record %s  %s  %q\n\n", rec.ShortID, rec.SenderAddress, rec.Subject)

	if len(res.Shortlist) == 0 {
		fmt.Println("shortlist: empty")
	} else {
		fmt.Println("shortlist:")
		for i, entry := range res.Shortlist {
			suffix := ""
			if entry.ViaRedirect {
				suffix = "  (via redirect)"
			}
			fmt.Printf("  %d. %-12s %.2f  %s%s\n", i+1, entry.EntityCode, entry.Score, entry.ChosenMethod, suffix)
			for _, evidence := range entry.Evidence {
				fmt.Printf("       - %s\n", evidence)
			}
		}
	}
	fmt.Println()

	switch res.Decision {
	case domain.DecisionAutoLink:
		fmt.Printf("decision: auto_link → %s (score %.2f, method %s)\n",
			res.Winner.EntityCode, res.Winner.Score, res.Winner.ChosenMethod)
	case domain.DecisionSuggest:
		fmt.Printf("decision: suggest → top %s (score %.2f), shortlist of %d\n",
			res.Shortlist[0].EntityCode, res.Shortlist[0].Score, len(res.Shortlist))
	default:
		fmt.Printf("decision: %s\n", res.Decision)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
