package store

type Stores struct {
	db DBTX
}

// NewStores builds the store factory over a querier. Pass a pool for
// standalone access or a pgx.Tx to scope every store to one transaction.
func NewStores(db DBTX) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Records() RecordStore {
	return newRecordStore(s.db)
}

func (s *Stores) Entities() EntityStore {
	return newEntityStore(s.db)
}

func (s *Stores) Patterns() PatternStore {
	return newPatternStore(s.db)
}

func (s *Stores) Suggestions() SuggestionStore {
	return newSuggestionStore(s.db)
}

func (s *Stores) Bindings() BindingStore {
	return newBindingStore(s.db)
}

func (s *Stores) Events() EventStore {
	return newEventStore(s.db)
}
