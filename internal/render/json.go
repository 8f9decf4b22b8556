package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/facts"
	"github.com/robert-at-pretension-io/svdoc/internal/validator"
)

// WriteJSON writes lib as nested JSON after checking it against the doc
// schema.
func WriteJSON(w io.Writer, lib *doc.Library) error {
	if lib == nil {
		lib = doc.NewLibrary("")
	}
	if err := validator.ValidateDoc(lib); err != nil {
		return fmt.Errorf("documentation violates schema: %w", err)
	}
	return encode(w, lib)
}

// WriteFactsJSON writes fact tables after checking them against the facts
// schema.
func WriteFactsJSON(w io.Writer, tables facts.Tables) error {
	if err := validator.ValidateFacts(tables); err != nil {
		return fmt.Errorf("fact tables violate schema: %w", err)
	}
	return encode(w, tables)
}

// WriteDeltaJSON writes a fact delta after checking it against the delta
// schema.
func WriteDeltaJSON(w io.Writer, delta facts.Delta) error {
	if err := validator.ValidateDelta(delta); err != nil {
		return fmt.Errorf("fact delta violates schema: %w", err)
	}
	return encode(w, delta)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
