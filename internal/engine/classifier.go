package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"anchorline.app/resolver/common/llm"
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

const (
	scoreClassifier = 0.70

	// maxClassifierBody bounds the record body sent to the model. Enough
	// for the opening of any correspondence; transcripts get truncated.
	maxClassifierBody = 2000
)

type classification struct {
	Code *string `json:"code" jsonschema_description:"Exact catalog code of the single best-matching entity, or null when no entity clearly applies"`
}

var classificationSchema = llm.GenerateSchema[classification]()

// classifierGenerator asks an LLM for the single best catalog code. It is
// strictly fail-open: timeout, transport error, or an unknown code all
// produce zero candidates and a WARN log, never an error. The engine drops
// its candidate when a deterministic strategy proposed a different entity.
type classifierGenerator struct {
	llm     llm.Client
	timeout time.Duration
}

func (classifierGenerator) Name() string { return "external_classifier" }

func (g classifierGenerator) Generate(ctx context.Context, rec *model.Record, cat *CatalogSnapshot, _ *PatternSnapshot) []domain.Candidate {
	if cat.Len() == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var result classification
	_, err := g.llm.Chat(ctx, llm.Request{
		SystemPrompt: classifierSystemPrompt,
		UserPrompt:   g.buildPrompt(rec, cat),
		SchemaName:   "entity_classification",
		Schema:       classificationSchema,
		Temperature:  llm.Temp(0),
	}, &result)
	if err != nil {
		slog.WarnContext(ctx, "classifier failed open",
			"record_id", rec.ID,
			"error", err)
		return nil
	}

	if result.Code == nil || *result.Code == "" {
		return nil
	}

	entity, ok := cat.FindByCode(*result.Code)
	if !ok {
		slog.WarnContext(ctx, "classifier proposed unknown code",
			"record_id", rec.ID,
			"code", *result.Code)
		return nil
	}

	return []domain.Candidate{{
		EntityCode: entity.Code,
		Score:      scoreClassifier,
		Method:     model.MethodExternalClassifier,
		Evidence:   fmt.Sprintf("classifier proposed %s", entity.Code),
	}}
}

func (g classifierGenerator) buildPrompt(rec *model.Record, cat *CatalogSnapshot) string {
	var sb strings.Builder

	sb.WriteString("## Catalog\n")
	for i := range cat.Entities {
		e := &cat.Entities[i]
		sb.WriteString(e.Code)
		sb.WriteString(" — ")
		sb.WriteString(e.Name)
		if e.Company != nil && *e.Company != "" {
			sb.WriteString(" (")
			sb.WriteString(*e.Company)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Record\n")
	sb.WriteString("From: ")
	sb.WriteString(rec.SenderAddress)
	sb.WriteString("\nSubject: ")
	sb.WriteString(rec.Subject)
	sb.WriteString("\n\n")

	body := rec.Body
	if len(body) > maxClassifierBody {
		body = body[:maxClassifierBody] + "..."
	}
	sb.WriteString(body)

	return sb.String()
}

const classifierSystemPrompt = `You match business correspondence to catalog entities.

Given a catalog of entities (code — name, optionally a company) and one
record, pick the single entity the record is clearly about.

## Rules

- Answer with the exact catalog code, character for character.
- Answer null unless one entity is clearly the subject of the record.
- A passing mention is not enough; the record must be about the entity.
- Never invent codes that are not in the catalog.`
