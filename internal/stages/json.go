package stages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rendis/flowgame/internal/validation"
	"github.com/rendis/flowgame/pkg/schema"
)

// LoadJSON reads a JSON stage pack. The document is checked against the
// stage pack schema before it is decoded.
func LoadJSON(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stage pack: %w", err)
	}

	jsv, err := validation.NewStageSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("create schema validator: %w", err)
	}
	if err := jsv.ValidateDocument(raw); err != nil {
		return nil, err
	}

	var pack schema.StagePack
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pack); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "decode stage pack").WithCause(err)
	}
	return New(&pack)
}

// WriteJSON writes the catalog as an indented JSON stage pack.
func WriteJSON(w io.Writer, c *Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Pack()); err != nil {
		return fmt.Errorf("encode stage pack: %w", err)
	}
	return nil
}
