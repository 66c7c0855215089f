package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gemini-rag-be/internal/entity"
)

var ErrMalformedMetadata = errors.New("malformed metadata")

// ParseCustomMetadata turns a flat JSON object into key/value pairs, keeping
// the order keys appear in the input. Scalars are stringified; nested objects
// and arrays are rejected. A repeated key overwrites the earlier value in place.
func ParseCustomMetadata(raw string) ([]entity.CustomMetadata, error) {
	if strings.TrimSpace(raw) == "" {
		return []entity.CustomMetadata{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedMetadata)
	}

	result := make([]entity.CustomMetadata, 0)
	index := make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: invalid key", ErrMalformedMetadata)
		}

		valueTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
		}

		var value string
		switch v := valueTok.(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		case bool:
			value = strconv.FormatBool(v)
		case nil:
			value = ""
		default:
			return nil, fmt.Errorf("%w: value for %q must be a scalar", ErrMalformedMetadata, key)
		}

		if i, exists := index[key]; exists {
			result[i].StringValue = value
			continue
		}
		index[key] = len(result)
		result = append(result, entity.CustomMetadata{Key: key, StringValue: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedMetadata)
	}

	return result, nil
}
