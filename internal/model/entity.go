package model

import "time"

type EntityKind string

const (
	EntityKindProject  EntityKind = "project"
	EntityKindProposal EntityKind = "proposal"
	EntityKindContact  EntityKind = "contact"
)

// Entity is a canonical catalog object. The catalog is owned by an external
// collaborator and synced in upsert-only fashion; the resolver never deletes
// or rewrites entities on its own.
type Entity struct {
	ID        int64      `json:"id"`
	Kind      EntityKind `json:"kind"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Aliases   []string   `json:"aliases,omitempty"`
	Company   *string    `json:"company,omitempty"`
	Domain    *string    `json:"domain,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
