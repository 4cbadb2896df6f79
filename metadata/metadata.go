package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sapops/rfcmeta/store"
)

// Direction classifies how a parameter moves through a function call.
type Direction string

const (
	DirectionIn    Direction = "IN"
	DirectionOut   Direction = "OUT"
	DirectionInOut Direction = "INOUT"
	DirectionTable Direction = "TABLE"
)

// ParameterDescriptor describes one parameter of a remote function.
type ParameterDescriptor struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	TypeName    string    `json:"type_name"`
	Length      int       `json:"length,omitempty"`
	Decimals    int       `json:"decimals,omitempty"`
	Description string    `json:"description,omitempty"`
	Default     string    `json:"default,omitempty"`
}

// FunctionMetadata is the typed description of one remote function in one
// language. Immutable once stored; a refresh replaces the whole document.
type FunctionMetadata struct {
	FunctionName string                `json:"function_name"`
	LanguageCode string                `json:"language_code"`
	Description  string                `json:"description,omitempty"`
	Parameters   []ParameterDescriptor `json:"parameters"`

	// Catalog attributes; optional, searchable.
	Area       string `json:"area,omitempty"`
	DevClass   string `json:"dev_class,omitempty"`
	ReleasedOn string `json:"released_on,omitempty"`

	StructuralVersion string `json:"structural_version"`

	// Degraded marks a stale result served because a refresh failed. It is
	// a read-time tag, never persisted.
	Degraded bool `json:"-"`
}

// NormalizeFunctionName uppercases and trims a function name. Backend
// catalogs are case-insensitive but store names uppercase.
func NormalizeFunctionName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// SearchText returns the text the search index should tokenize for this
// document: description, parameter names and descriptions, and catalog
// attributes. The function name itself is added by the index.
func (m *FunctionMetadata) SearchText() string {
	var b strings.Builder
	b.WriteString(m.Description)
	for _, p := range m.Parameters {
		b.WriteByte(' ')
		b.WriteString(p.Name)
		if p.Description != "" {
			b.WriteByte(' ')
			b.WriteString(p.Description)
		}
	}
	if m.Area != "" {
		b.WriteByte(' ')
		b.WriteString(m.Area)
	}
	if m.DevClass != "" {
		b.WriteByte(' ')
		b.WriteString(m.DevClass)
	}
	return b.String()
}

// ComputeStructuralVersion hashes the interface shape: parameter names,
// directions and types, in order. Descriptions and catalog attributes do
// not participate, so a text-only change keeps the version stable.
func ComputeStructuralVersion(params []ParameterDescriptor) string {
	h := sha256.New()
	for _, p := range params {
		fmt.Fprintf(h, "%s|%s|%s|%d|%d\n", p.Name, p.Direction, p.TypeName, p.Length, p.Decimals)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Encode serializes and compresses metadata into a store payload.
func Encode(m *FunctionMetadata) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	return store.Compress(data)
}

// Decode reverses Encode. The round trip is lossless.
func Decode(payload []byte) (*FunctionMetadata, error) {
	data, err := store.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("metadata: decode: %w", err)
	}
	var m FunctionMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadata: decode: %w", err)
	}
	return &m, nil
}

// DecodeEntry decodes a positive store entry into its metadata document.
func DecodeEntry(e *store.Entry) (*FunctionMetadata, error) {
	if e.Negative {
		return nil, ErrNotFound
	}
	return Decode(e.Payload)
}
