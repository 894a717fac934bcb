package domain

import (
	"bytes"
	"encoding/json"
)

// Metadata is the open, semi-structured payload attached to a card. Its
// shape depends on the card type and language, so the pipeline stores the
// raw JSON and only requires it to be a well-formed object. Known fields
// can be decoded into CardMetadata; unrecognized keys survive round-trips
// because the raw bytes are what is persisted.
type Metadata json.RawMessage

// CardMetadata is the typed view of the metadata fields the card producers
// are known to emit. All fields are optional.
type CardMetadata struct {
	Difficulty     string            `json:"difficulty,omitempty"`
	PartOfSpeech   string            `json:"partOfSpeech,omitempty"`
	Conjugations   map[string]string `json:"conjugations,omitempty"`
	Gender         string            `json:"gender,omitempty"`
	Plural         string            `json:"plural,omitempty"`
	IrregularForms map[string]string `json:"irregularForms,omitempty"`
	Tones          []int             `json:"tones,omitempty"`
	Particles      []string          `json:"particles,omitempty"`
	Pronunciation  string            `json:"pronunciation,omitempty"`
	Etymology      string            `json:"etymology,omitempty"`
}

// Validate checks that the metadata, if present, is a well-formed JSON
// object. Absent metadata is valid. Non-object payloads (arrays, scalars,
// malformed bytes) are rejected with ErrMalformedMetadata.
func (m Metadata) Validate() error {
	if m.IsEmpty() {
		return nil
	}

	trimmed := bytes.TrimSpace(m)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrMalformedMetadata
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return ErrMalformedMetadata
	}

	return nil
}

// Decode unmarshals the known metadata fields into a CardMetadata view.
// Unknown keys are ignored here but remain in the raw payload.
func (m Metadata) Decode() (*CardMetadata, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	meta := &CardMetadata{}
	if m.IsEmpty() {
		return meta, nil
	}

	if err := json.Unmarshal(m, meta); err != nil {
		return nil, ErrMalformedMetadata
	}

	return meta, nil
}

// IsEmpty reports whether no metadata was supplied.
func (m Metadata) IsEmpty() bool {
	trimmed := bytes.TrimSpace(m)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// MarshalJSON returns the raw payload, or null when empty.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.IsEmpty() {
		return []byte("null"), nil
	}
	return json.RawMessage(m).MarshalJSON()
}

// UnmarshalJSON stores the raw payload verbatim.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(m).UnmarshalJSON(data)
}
