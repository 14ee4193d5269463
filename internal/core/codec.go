package core

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode turns a stored document into a typed record and checks it against
// the record's validate tags. Store documents are never trusted as-is.
func Decode[T any](doc Doc) (T, error) {
	var out T
	b, err := doc.JSON()
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", domain.ErrInvalidRecord, doc.ID, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", domain.ErrInvalidRecord, doc.ID, err)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", domain.ErrInvalidRecord, doc.ID, err)
	}
	return out, nil
}

// DecodeAll decodes every document, skipping (and logging) the ones that
// fail the schema check so one bad row cannot blank a whole feed.
func DecodeAll[T any](docs []Doc) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			log.Warn().Err(err).Str("module", "core.codec").Str("doc", d.ID).Msg("skipping invalid record")
			continue
		}
		out = append(out, v)
	}
	return out
}
