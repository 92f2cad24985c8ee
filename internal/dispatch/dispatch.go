// Package dispatch routes a tagged log line to its parser and schema.
package dispatch

import (
	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/internal/parser"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/pkg/event"
)

// Parsed is a successfully parsed line paired with the schema to encode it against.
type Parsed struct {
	Record event.Record
	Schema *schema.Schema
}

// Dispatcher selects the parser and schema for a row's category.
type Dispatcher struct {
	schemas   *schema.Set
	validator event.Validator
}

// New creates a dispatcher. A nil validator disables record validation.
func New(schemas *schema.Set, validator event.Validator) *Dispatcher {
	return &Dispatcher{schemas: schemas, validator: validator}
}

// Dispatch parses a raw line tagged with a CSV type.
// Unknown tags return *errors.UnknownCategoryError, unparseable lines
// *errors.ParseError and invalid records *errors.ValidationError. On error
// neither record nor schema is returned.
func (d *Dispatcher) Dispatch(tag, line string) (Parsed, error) {
	c, ok := event.ParseCategory(tag)
	if !ok {
		return Parsed{}, &errors.UnknownCategoryError{Tag: tag}
	}

	sch, err := d.schemas.For(c)
	if err != nil {
		return Parsed{}, err
	}

	rec, err := parser.Parse(c, line)
	if err != nil {
		return Parsed{}, err
	}

	if d.validator != nil {
		if err := d.validator.Validate(rec); err != nil {
			return Parsed{}, err
		}
	}

	return Parsed{Record: rec, Schema: sch}, nil
}
