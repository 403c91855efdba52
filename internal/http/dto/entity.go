package dto

import "anchorline.app/resolver/internal/model"

// CatalogEntryPayload is one entity in a catalog sync push. Codes are
// normalized server-side; omitted kind defaults to project, omitted active
// to true.
type CatalogEntryPayload struct {
	Kind    string   `json:"kind,omitempty"`
	Code    string   `json:"code" binding:"required"`
	Name    string   `json:"name" binding:"required"`
	Aliases []string `json:"aliases,omitempty"`
	Company *string  `json:"company,omitempty"`
	Domain  *string  `json:"domain,omitempty"`
	Active  *bool    `json:"active,omitempty"`
}

type SyncEntitiesRequest struct {
	Entities []CatalogEntryPayload `json:"entities" binding:"required"`
}

type SyncEntitiesResponse struct {
	Synced int `json:"synced"`
}

type EntityListResponse struct {
	Entities []model.Entity `json:"entities"`
	Count    int            `json:"count"`
}
