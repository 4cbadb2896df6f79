package store

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompress_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"small json", []byte(`{"function_name":"RFC_READ_TABLE"}`)},
		{"repetitive", []byte(strings.Repeat("PARAMETER DESCRIPTION ", 500))},
		{"binary", []byte{0x00, 0xff, 0x1f, 0x8b, 0x00}},
		{"unicode", []byte("Tabelle lesen — čtení tabulky — чтение таблицы")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := Compress(tt.data)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			out, err := Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(out, tt.data) {
				t.Errorf("round trip changed data: got %q, want %q", out, tt.data)
			}
		})
	}
}

func TestCompress_ShrinksRepetitiveInput(t *testing.T) {
	data := []byte(strings.Repeat(`{"name":"QUERY_TABLE","type":"CHAR(30)"}`, 200))
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed %d bytes >= input %d bytes", len(compressed), len(data))
	}
}

func TestDecompress_RejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte("not gzip at all")); err == nil {
		t.Error("Decompress on garbage should error")
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("RFC_READ_TABLE@E"))
	b := Checksum([]byte("RFC_READ_TABLE@E"))
	c := Checksum([]byte("RFC_READ_TABLE@D"))

	if len(a) != 16 {
		t.Errorf("checksum length = %d, want 16 hex chars", len(a))
	}
	if a != b {
		t.Error("checksum must be deterministic")
	}
	if a == c {
		t.Error("distinct inputs should not collide")
	}
}
