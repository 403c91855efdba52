package mapper

import (
	"context"
	"fmt"
	"strings"

	"anchorline.app/resolver/internal/model"
)

type EntityMapper interface {
	Map(ctx context.Context, payload map[string]any) (*model.Entity, error)
}

// PayloadEntityMapper normalizes one row of a loose catalog export into an
// entity. Codes are upper-cased, domains reduced to a bare hostname, and the
// returned entity carries no id.
type PayloadEntityMapper struct{}

func NewPayloadEntityMapper() *PayloadEntityMapper {
	return &PayloadEntityMapper{}
}

func (m *PayloadEntityMapper) Map(ctx context.Context, payload map[string]any) (*model.Entity, error) {
	code := strings.ToUpper(firstString(payload, "code", "key", "ref", "entity_code"))
	if code == "" {
		return nil, fmt.Errorf("payload has no entity code")
	}
	name := firstString(payload, "name", "title", "display_name")
	if name == "" {
		return nil, fmt.Errorf("entity %s has no name", code)
	}

	kind, err := m.mapKind(firstString(payload, "kind", "type", "entity_type"))
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", code, err)
	}

	entity := &model.Entity{
		Kind:    kind,
		Code:    code,
		Name:    name,
		Aliases: stringList(payload, "aliases", "aka"),
		Active:  true,
	}
	if company := firstString(payload, "company", "company_name", "account"); company != "" {
		entity.Company = &company
	}
	if domain := hostname(firstString(payload, "domain", "website", "url")); domain != "" {
		entity.Domain = &domain
	}
	if v, ok := payload["active"]; ok {
		if b, ok := v.(bool); ok {
			entity.Active = b
		}
	}
	return entity, nil
}

func (m *PayloadEntityMapper) mapKind(raw string) (model.EntityKind, error) {
	switch strings.ToLower(raw) {
	case "", "project":
		return model.EntityKindProject, nil
	case "proposal", "bid", "quote":
		return model.EntityKindProposal, nil
	case "contact", "person", "client":
		return model.EntityKindContact, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", raw)
}

// stringList accepts either a JSON array of strings or one comma-separated
// string under any of the given keys.
func stringList(payload map[string]any, keys ...string) []string {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []any:
			var out []string
			for _, item := range t {
				if s, ok := item.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
			}
			return out
		case string:
			var out []string
			for _, part := range strings.Split(t, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			return out
		}
	}
	return nil
}

// hostname reduces a website-or-domain value to a bare lower-case hostname.
func hostname(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	return strings.TrimPrefix(h, "www.")
}
