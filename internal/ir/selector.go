package ir

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SelectorKind tags the variant of a Selector.
// The numeric values are part of the canonical encoding and must not change.
type SelectorKind uint8

const (
	SelectorNumeric SelectorKind = 1
	SelectorName    SelectorKind = 2
	SelectorRaw     SelectorKind = 3
)

// MaxSelectorLength bounds Name and Raw selectors.
const MaxSelectorLength = 64

var selectorNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// String returns the JSON name of the kind.
func (k SelectorKind) String() string {
	switch k {
	case SelectorNumeric:
		return "numeric"
	case SelectorName:
		return "name"
	case SelectorRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseSelectorKind is the inverse of SelectorKind.String.
func ParseSelectorKind(s string) (SelectorKind, error) {
	switch s {
	case "numeric":
		return SelectorNumeric, nil
	case "name":
		return SelectorName, nil
	case "raw":
		return SelectorRaw, nil
	default:
		return 0, fmt.Errorf("unknown selector kind %q: %w", s, ErrInvalidSelector)
	}
}

// Selector identifies the function to invoke on a target.
//
// It is a tagged union over three addressing schemes:
//   - Numeric: a 4-byte opcode, also used for governance operations
//   - Name: an ASCII identifier
//   - Raw: opaque bytes, optionally marked for dispatch by identifier
//
// The zero value is invalid. Construct selectors with NumericSelector,
// NameSelector or RawSelector.
type Selector struct {
	kind         SelectorKind
	number       uint32
	name         string
	raw          []byte
	dispatchByID bool
}

// NumericSelector returns a Numeric selector.
func NumericSelector(opcode uint32) Selector {
	return Selector{kind: SelectorNumeric, number: opcode}
}

// NameSelector returns a Name selector.
func NameSelector(name string) Selector {
	return Selector{kind: SelectorName, name: name}
}

// RawSelector returns a Raw selector. When dispatchByID is set the wire form
// carries a trailing zero byte.
func RawSelector(id []byte, dispatchByID bool) Selector {
	return Selector{kind: SelectorRaw, raw: bytes.Clone(id), dispatchByID: dispatchByID}
}

// Kind returns the variant tag.
func (s Selector) Kind() SelectorKind { return s.kind }

// Number returns the opcode of a Numeric selector.
func (s Selector) Number() (uint32, bool) {
	return s.number, s.kind == SelectorNumeric
}

// Name returns the identifier of a Name selector.
func (s Selector) Name() (string, bool) {
	return s.name, s.kind == SelectorName
}

// Raw returns the identifier bytes of a Raw selector, without the marker.
func (s Selector) Raw() ([]byte, bool) {
	return bytes.Clone(s.raw), s.kind == SelectorRaw
}

// DispatchByID reports whether a Raw selector carries the dispatch marker.
func (s Selector) DispatchByID() bool {
	return s.kind == SelectorRaw && s.dispatchByID
}

// Validate checks variant-specific constraints.
func (s Selector) Validate() error {
	switch s.kind {
	case SelectorNumeric:
		return nil
	case SelectorName:
		if len(s.name) > MaxSelectorLength {
			return fmt.Errorf("selector name has %d bytes, max %d: %w", len(s.name), MaxSelectorLength, ErrInvalidSelector)
		}
		if !selectorNamePattern.MatchString(s.name) {
			return fmt.Errorf("selector name %q is not an identifier: %w", s.name, ErrInvalidSelector)
		}
		return nil
	case SelectorRaw:
		if len(s.raw) == 0 || len(s.raw) > MaxSelectorLength {
			return fmt.Errorf("raw selector has %d bytes, want 1..%d: %w", len(s.raw), MaxSelectorLength, ErrInvalidSelector)
		}
		// A trailing zero would be indistinguishable from the dispatch marker.
		if s.raw[len(s.raw)-1] == 0 {
			return fmt.Errorf("raw selector must not end in a zero byte: %w", ErrInvalidSelector)
		}
		return nil
	default:
		return fmt.Errorf("selector kind %d: %w", s.kind, ErrInvalidSelector)
	}
}

// Wire returns the variant payload as it appears in the canonical encoding.
func (s Selector) Wire() []byte {
	switch s.kind {
	case SelectorNumeric:
		return binary.BigEndian.AppendUint32(nil, s.number)
	case SelectorName:
		return []byte(s.name)
	case SelectorRaw:
		out := bytes.Clone(s.raw)
		if s.dispatchByID {
			out = append(out, 0)
		}
		return out
	default:
		return nil
	}
}

// DecodeSelector rebuilds a selector from its kind tag and wire payload.
func DecodeSelector(kind SelectorKind, wire []byte) (Selector, error) {
	var s Selector
	switch kind {
	case SelectorNumeric:
		if len(wire) != 4 {
			return s, fmt.Errorf("numeric selector has %d bytes, want 4: %w", len(wire), ErrInvalidSelector)
		}
		s = NumericSelector(binary.BigEndian.Uint32(wire))
	case SelectorName:
		s = NameSelector(string(wire))
	case SelectorRaw:
		if n := len(wire); n > 0 && wire[n-1] == 0 {
			s = RawSelector(wire[:n-1], true)
		} else {
			s = RawSelector(wire, false)
		}
	default:
		return s, fmt.Errorf("selector kind %d: %w", kind, ErrInvalidSelector)
	}
	return s, s.Validate()
}

// Equal reports whether two selectors denote the same function.
func (s Selector) Equal(o Selector) bool {
	return s.kind == o.kind && bytes.Equal(s.Wire(), o.Wire())
}

// String renders the selector for logs and traces.
func (s Selector) String() string {
	switch s.kind {
	case SelectorNumeric:
		return fmt.Sprintf("0x%08x", s.number)
	case SelectorName:
		return s.name
	case SelectorRaw:
		if s.dispatchByID {
			return hexutil.Encode(s.raw) + "#id"
		}
		return hexutil.Encode(s.raw)
	default:
		return "invalid"
	}
}

type selectorJSON struct {
	Kind         string `json:"kind"`
	Value        string `json:"value"`
	DispatchByID bool   `json:"dispatch_by_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Selector) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := selectorJSON{Kind: s.kind.String()}
	switch s.kind {
	case SelectorNumeric:
		out.Value = fmt.Sprintf("0x%08x", s.number)
	case SelectorName:
		out.Value = s.name
	case SelectorRaw:
		out.Value = hexutil.Encode(s.raw)
		out.DispatchByID = s.dispatchByID
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var in selectorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("selector: %w", err)
	}
	sel, err := ParseSelector(in.Kind, in.Value, in.DispatchByID)
	if err != nil {
		return err
	}
	*s = sel
	return nil
}

// ParseSelector builds a selector from its textual parts, as used by JSON,
// YAML scenarios and CLI flags.
func ParseSelector(kind, value string, dispatchByID bool) (Selector, error) {
	k, err := ParseSelectorKind(kind)
	if err != nil {
		return Selector{}, err
	}
	var sel Selector
	switch k {
	case SelectorNumeric:
		n, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return Selector{}, fmt.Errorf("numeric selector %q: %w", value, ErrInvalidSelector)
		}
		sel = NumericSelector(uint32(n))
	case SelectorName:
		sel = NameSelector(value)
	case SelectorRaw:
		b, err := hexutil.Decode(value)
		if err != nil {
			return Selector{}, fmt.Errorf("raw selector %q: %w", value, ErrInvalidSelector)
		}
		sel = RawSelector(b, dispatchByID)
	}
	return sel, sel.Validate()
}
