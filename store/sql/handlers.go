package sqlstore

import (
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// recordHandlers builds the repository handlers for a record keyed by a
// string uuid. idField returns nil for a nil record.
func recordHandlers[T any](newRecord func() T, idField func(T) *string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			id := idField(record)
			if id == nil {
				return uuid.Nil
			}
			return parseUUID(*id)
		},
		SetID: func(record T, id uuid.UUID) {
			if field := idField(record); field != nil {
				*field = id.String()
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			id := idField(record)
			if id == nil {
				return ""
			}
			return strings.TrimSpace(*id)
		},
	}
}

func eventHandlers() repository.ModelHandlers[*eventRecord] {
	return recordHandlers(
		func() *eventRecord { return &eventRecord{} },
		func(record *eventRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func orderItemHandlers() repository.ModelHandlers[*orderItemRecord] {
	return recordHandlers(
		func() *orderItemRecord { return &orderItemRecord{} },
		func(record *orderItemRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func orderPaymentHandlers() repository.ModelHandlers[*orderPaymentRecord] {
	return recordHandlers(
		func() *orderPaymentRecord { return &orderPaymentRecord{} },
		func(record *orderPaymentRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func orderBenefitHandlers() repository.ModelHandlers[*orderBenefitRecord] {
	return recordHandlers(
		func() *orderBenefitRecord { return &orderBenefitRecord{} },
		func(record *orderBenefitRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func newRepository[T any](db *bun.DB, handlers repository.ModelHandlers[T], label string) (repository.Repository[T], error) {
	repo := repository.NewRepository[T](db, handlers)
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", label, err)
		}
	}
	return repo, nil
}

func newRecordID() string {
	return uuid.NewString()
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
