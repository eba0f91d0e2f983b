package ir

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selector
		wantErr bool
	}{
		{"numeric", NumericSelector(0x45a004b9), false},
		{"name", NameSelector("increment"), false},
		{"name underscore", NameSelector("_set_value2"), false},
		{"name empty", NameSelector(""), true},
		{"name leading digit", NameSelector("1x"), true},
		{"name too long", NameSelector(strings.Repeat("a", MaxSelectorLength+1)), true},
		{"raw", RawSelector([]byte{1, 2, 3}, false), false},
		{"raw by id", RawSelector([]byte{1, 2, 3}, true), false},
		{"raw empty", RawSelector(nil, false), true},
		{"raw trailing zero", RawSelector([]byte{1, 0}, false), true},
		{"zero value", Selector{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSelector)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSelectorWire(t *testing.T) {
	assert.Equal(t, []byte{0xa8, 0xda, 0x4c, 0x51}, NumericSelector(0xa8da4c51).Wire())
	assert.Equal(t, []byte("increment"), NameSelector("increment").Wire())
	assert.Equal(t, []byte{1, 2}, RawSelector([]byte{1, 2}, false).Wire())
	assert.Equal(t, []byte{1, 2, 0}, RawSelector([]byte{1, 2}, true).Wire())
}

func TestDecodeSelectorRawMarker(t *testing.T) {
	sel, err := DecodeSelector(SelectorRaw, []byte{1, 2, 0})
	require.NoError(t, err)
	assert.True(t, sel.DispatchByID())
	raw, ok := sel.Raw()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, raw)

	_, err = DecodeSelector(SelectorNumeric, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSelector)

	_, err = DecodeSelector(SelectorKind(9), []byte{1})
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestSelectorJSON(t *testing.T) {
	tests := []struct {
		sel  Selector
		json string
	}{
		{NumericSelector(0xa8da4c51), `{"kind":"numeric","value":"0xa8da4c51"}`},
		{NameSelector("increment"), `{"kind":"name","value":"increment"}`},
		{RawSelector([]byte{1, 2, 3, 4}, true), `{"kind":"raw","value":"0x01020304","dispatch_by_id":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.sel.Kind().String(), func(t *testing.T) {
			data, err := json.Marshal(tt.sel)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var decoded Selector
			require.NoError(t, json.Unmarshal([]byte(tt.json), &decoded))
			assert.True(t, tt.sel.Equal(decoded))
		})
	}
}

func TestParseSelectorRejectsUnknownKind(t *testing.T) {
	_, err := ParseSelector("bytes", "0x01", false)
	assert.ErrorIs(t, err, ErrInvalidSelector)
}
