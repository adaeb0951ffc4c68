package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysSurrogates(t *testing.T) {
	// U+1F600 encodes to surrogates (0xD83D...) which sort before U+FFFD
	// in UTF-16 but after it in UTF-8.
	obj := IRObject{"�": IRInt(1), "\U0001F600": IRInt(2)}
	assert.Equal(t, []string{"\U0001F600", "�"}, obj.SortedKeys())
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  IRValue
		equal bool
	}{
		{"both nil", nil, nil, true},
		{"nil and null", nil, IRNull{}, true},
		{"nil and string", nil, IRString(""), false},
		{"same string", IRString("Alice"), IRString("Alice"), true},
		{"different string", IRString("Alice"), IRString("Bob"), false},
		{"string vs int", IRString("1"), IRInt(1), false},
		{"same int", IRInt(7), IRInt(7), true},
		{"same bool", IRBool(true), IRBool(true), true},
		{"nested array", IRArray{IRInt(1), IRArray{IRString("x")}}, IRArray{IRInt(1), IRArray{IRString("x")}}, true},
		{"array length", IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}, false},
		{"object", IRObject{"a": IRInt(1)}, IRObject{"a": IRInt(1)}, true},
		{"object missing key", IRObject{"a": IRInt(1)}, IRObject{"b": IRInt(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, ValuesEqual(tt.a, tt.b))
			assert.Equal(t, tt.equal, ValuesEqual(tt.b, tt.a), "symmetry")
		})
	}
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"name":  IRString("Alice"),
		"age":   IRInt(9007199254740993),
		"tags":  IRArray{IRString("a"), IRBool(false)},
		"empty": IRNull{},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, ValuesEqual(obj, decoded))
	assert.Equal(t, IRInt(9007199254740993), decoded["age"], "large ints keep precision")
}

func TestUnmarshalIRValueRejectsFloats(t *testing.T) {
	_, err := UnmarshalIRValue([]byte("1.5"))
	require.Error(t, err)

	v, err := UnmarshalIRValue([]byte(" 12 "))
	require.NoError(t, err)
	assert.Equal(t, IRInt(12), v)
}

func TestToIRValue(t *testing.T) {
	v, err := ToIRValue(map[string]any{
		"n":    3,
		"f":    float64(4),
		"list": []any{"x", true, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"n":    IRInt(3),
		"f":    IRInt(4),
		"list": IRArray{IRString("x"), IRBool(true), IRNull{}},
	}, v)

	_, err = ToIRValue(2.5)
	require.Error(t, err)

	_, err = ToIRValue(struct{}{})
	require.Error(t, err)
}
