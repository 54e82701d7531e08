// SPDX-License-Identifier: MPL-2.0

// Package standalone embeds a bundled script tree in a copy of the runtime
// executable and finds it again at startup.
//
// The trailer appended to the host executable is
//
//	[host bytes][JSON metadata][payload length: uint64 big-endian][magic "cr3sc3nt"]
//
// Only the length and magic are positional; the JSON payload can gain fields
// without breaking older readers.
package standalone

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"
)

// Magic marks the last eight bytes of a standalone binary.
const Magic = "cr3sc3nt"

// trailerSize is the fixed length+magic suffix.
const trailerSize = 16

var (
	// ErrNotStandalone is returned for bytes without a trailer. Callers fall back
	// to running a script file.
	ErrNotStandalone = errors.New("not a standalone binary")
	// ErrCorruptMetadata is returned when a trailer is present but its payload is
	// truncated or cannot be decoded.
	ErrCorruptMetadata = errors.New("corrupt standalone metadata")
	// ErrUnencodable is returned by Trailer for metadata whose strings would not
	// survive the JSON payload unchanged.
	ErrUnencodable = errors.New("metadata cannot be encoded")
)

type (
	// Metadata is everything a standalone binary needs to run its entry script.
	Metadata struct {
		// Source is the entry script, shebang already stripped.
		Source []byte `json:"source"`
		// EntryPath is the entry's bundle key, used as its chunk name.
		EntryPath string `json:"entry_path"`
		// Files maps bundle keys to module sources.
		Files map[string][]byte `json:"files"`
		// Aliases maps alias literals to bundle keys.
		Aliases map[string]string `json:"aliases"`
		// RuntimeVersion is the version of the runtime that built the binary.
		RuntimeVersion string `json:"runtime_version,omitempty"`
		// Extensions and IndexName are the resolver settings the bundle was
		// built with, so relative requires resolve the same way at run time.
		Extensions []string `json:"extensions,omitempty"`
		IndexName  string   `json:"index_name,omitempty"`
	}

	// UnencodableError names the first string that is not valid UTF-8. JSON
	// would replace its invalid bytes with U+FFFD, so the decoded bundle would
	// name a different file.
	UnencodableError struct {
		Field string
		Value string
	}

	// CorruptMetadataError describes why a present trailer could not be used.
	CorruptMetadataError struct {
		Reason string
		Err    error
	}
)

func (e *CorruptMetadataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCorruptMetadata, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrCorruptMetadata, e.Reason)
}

// Unwrap returns the decoding failure, if any.
func (e *CorruptMetadataError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCorruptMetadata.
func (e *CorruptMetadataError) Is(target error) bool { return target == ErrCorruptMetadata }

func (e *UnencodableError) Error() string {
	return fmt.Sprintf("%s: %s %q is not valid UTF-8", ErrUnencodable, e.Field, e.Value)
}

// Is reports whether target is ErrUnencodable.
func (e *UnencodableError) Is(target error) bool { return target == ErrUnencodable }

// IsStandalone is the cheap suffix check: at least trailerSize bytes ending in Magic.
func IsStandalone(b []byte) bool {
	return len(b) >= trailerSize && string(b[len(b)-len(Magic):]) == Magic
}

// Trailer serializes m into the bytes appended to a host executable.
func Trailer(m *Metadata) ([]byte, error) {
	if err := checkEncodable(m); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode standalone metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + trailerSize)
	buf.Write(payload)
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(payload)))
	buf.Write(size[:])
	buf.WriteString(Magic)
	return buf.Bytes(), nil
}

// checkEncodable rejects strings JSON cannot carry byte for byte. Sources and
// file contents are []byte and travel as base64, so only names are checked.
func checkEncodable(m *Metadata) error {
	check := func(field, v string) error {
		if !utf8.ValidString(v) {
			return &UnencodableError{Field: field, Value: v}
		}
		return nil
	}
	if err := check("entry path", m.EntryPath); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(m.Files)) {
		if err := check("file key", key); err != nil {
			return err
		}
	}
	for _, literal := range slices.Sorted(maps.Keys(m.Aliases)) {
		if err := check("alias", literal); err != nil {
			return err
		}
		if err := check("alias target", m.Aliases[literal]); err != nil {
			return err
		}
	}
	for _, ext := range m.Extensions {
		if err := check("extension", ext); err != nil {
			return err
		}
	}
	if err := check("index name", m.IndexName); err != nil {
		return err
	}
	return check("runtime version", m.RuntimeVersion)
}

// Encode returns host followed by the trailer for m. host is not modified.
func Encode(host []byte, m *Metadata) ([]byte, error) {
	trailer, err := Trailer(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(host)+len(trailer))
	out = append(out, host...)
	return append(out, trailer...), nil
}

// Decode extracts the metadata from a standalone binary's bytes.
func Decode(b []byte) (*Metadata, error) {
	_, m, err := Split(b)
	return m, err
}

// Split separates a standalone binary into its host executable bytes and its
// metadata. The returned host slice aliases b.
func Split(b []byte) ([]byte, *Metadata, error) {
	if !IsStandalone(b) {
		return nil, nil, ErrNotStandalone
	}

	end := len(b) - trailerSize
	size := binary.BigEndian.Uint64(b[end : end+8])
	if size > uint64(end) {
		return nil, nil, &CorruptMetadataError{
			Reason: fmt.Sprintf("payload length %d exceeds the %d bytes before the trailer", size, end),
		}
	}
	start := end - int(size)

	var m Metadata
	if err := json.Unmarshal(b[start:end], &m); err != nil {
		return nil, nil, &CorruptMetadataError{Reason: "payload is not valid metadata", Err: err}
	}
	if m.Files == nil {
		m.Files = make(map[string][]byte)
	}
	if m.Aliases == nil {
		m.Aliases = make(map[string]string)
	}
	return b[:start], &m, nil
}

// Host returns b without its trailer, or b itself when it has none.
func Host(b []byte) []byte {
	host, _, err := Split(b)
	if err != nil {
		return b
	}
	return host
}
