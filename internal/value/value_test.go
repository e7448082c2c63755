package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("a")
	var _ Value = Int(1)
	var _ Value = Float(0.5)
	var _ Value = Bool(true)
}

func TestMarshalCanonical_SortedKeysAndFloats(t *testing.T) {
	obj := Object{
		"position": Int(3),
		"duration": Float(1),
		"notes":    Null{},
		"id":       Int(7),
		"flag":     Bool(true),
	}

	data, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"duration":1.0,"flag":true,"id":7,"notes":null,"position":3}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical(Object{"notes": String("a<b>&\"c\"\n\u2028")})
	require.NoError(t, err)
	assert.Equal(t, "{\"notes\":\"a<b>&\\\"c\\\"\\n\u2028\"}", string(data))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	data, err := MarshalCanonical(Object{"notes": String("e\u0301")})
	require.NoError(t, err)
	assert.Equal(t, "{\"notes\":\"\u00e9\"}", string(data))
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Object{"duration": Float(math.Inf(1))})
	assert.Error(t, err)

	_, err = MarshalCanonical(Object{"duration": Float(math.NaN())})
	assert.Error(t, err)
}

func TestUnmarshalObject_PreservesKinds(t *testing.T) {
	obj, err := UnmarshalObject([]byte(`{"id":1,"duration":0.75,"whole":2.0,"notes":null,"flag":false,"name":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, Int(1), obj["id"])
	assert.Equal(t, Float(0.75), obj["duration"])
	assert.Equal(t, Float(2), obj["whole"])
	assert.Equal(t, Null{}, obj["notes"])
	assert.Equal(t, Bool(false), obj["flag"])
	assert.Equal(t, String("x"), obj["name"])
}

func TestUnmarshalObject_RejectsNested(t *testing.T) {
	_, err := UnmarshalObject([]byte(`{"a":[1,2]}`))
	assert.Error(t, err)

	_, err = UnmarshalObject([]byte(`[1]`))
	assert.Error(t, err)
}

func TestCanonicalRoundTrip(t *testing.T) {
	obj := Object{"id": Int(4), "duration": Float(1.0), "notes": Null{}, "include_in_measure": Bool(true)}

	data, err := MarshalCanonical(obj)
	require.NoError(t, err)

	back, err := UnmarshalObject(data)
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}

func TestObject_JSONMarshalerUsesCanonicalForm(t *testing.T) {
	data, err := json.Marshal(map[string]Object{"row": {"b": Int(2), "a": Int(1)}})
	require.NoError(t, err)
	assert.Equal(t, `{"row":{"a":1,"b":2}}`, string(data))
}

func TestObject_Accessors(t *testing.T) {
	obj := Object{"id": Int(2), "duration": Float(0.5), "flag": Int(1), "notes": Null{}}

	id, ok := obj.Int("id")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	d, ok := obj.Float("duration")
	assert.True(t, ok)
	assert.Equal(t, 0.5, d)

	b, ok := obj.Bool("flag")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = obj.String("notes")
	assert.False(t, ok)
	assert.True(t, obj.IsNull("notes"))
	assert.True(t, obj.Has("notes"))
	assert.False(t, obj.Has("missing"))
}

func TestObject_WithoutAndPick(t *testing.T) {
	obj := Object{"id": Int(1), "a": Int(2), "b": Int(3)}

	assert.Equal(t, Object{"a": Int(2), "b": Int(3)}, obj.Without("id"))
	assert.Equal(t, Object{"a": Int(2)}, obj.Pick("a", "missing"))
	assert.Len(t, obj, 3, "original must not be mutated")
}

func TestEqual_NumericAcrossKinds(t *testing.T) {
	assert.True(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(Bool(true), Int(1)))
	assert.False(t, Equal(Int(1), String("1")))
	assert.True(t, Equal(Null{}, Null{}))
}

func TestOfAndDriverConversions(t *testing.T) {
	s := "hi"
	var nilStr *string

	v, err := Of(&s)
	require.NoError(t, err)
	assert.Equal(t, String("hi"), v)

	v, err = Of(nilStr)
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)

	_, err = Of(struct{}{})
	assert.Error(t, err)

	v, err = FromDriver([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, String("raw"), v)

	assert.Nil(t, ToDriver(Null{}))
	assert.Equal(t, 0.25, ToDriver(Float(0.25)))
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123, time.UTC)
	back, err := ParseTime(FormatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))
}
