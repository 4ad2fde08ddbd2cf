package jsenv

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAllocator tracks live buffers by identity, failing on frees of
// unknown or already-freed buffers.
type countingAllocator struct {
	t      *testing.T
	live8  map[*byte]int
	live16 map[*uint16]int
	mu     sync.Mutex
	allocs int
	frees  int
}

func newCountingAllocator(t *testing.T) *countingAllocator {
	a := &countingAllocator{
		t:      t,
		live8:  make(map[*byte]int),
		live16: make(map[*uint16]int),
	}
	prev := SetAllocator(a)
	t.Cleanup(func() { SetAllocator(prev) })
	return a
}

func (a *countingAllocator) AllocUTF8(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := make([]byte, n)
	a.live8[&b[0]] = n
	a.allocs++
	return b
}

func (a *countingAllocator) FreeUTF8(b []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.live8[&b[0]]; !ok {
		a.t.Errorf("free of unknown or already freed utf8 buffer")
		return
	}
	delete(a.live8, &b[0])
	a.frees++
}

func (a *countingAllocator) AllocUTF16(n int) []uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := make([]uint16, n)
	a.live16[&s[0]] = n
	a.allocs++
	return s
}

func (a *countingAllocator) FreeUTF16(s []uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.live16[&s[0]]; !ok {
		a.t.Errorf("free of unknown or already freed utf16 buffer")
		return
	}
	delete(a.live16, &s[0])
	a.frees++
}

func (a *countingAllocator) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live8) + len(a.live16)
}

func TestValue_zeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, KindNull, v.Kind())
	assert.False(t, v.OwnsMemory())
	assert.Equal(t, "null", v.String())
}

func TestValue_scalarRoundTrip(t *testing.T) {
	var v Value

	for _, i := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32} {
		v.SetInt(i)
		assert.True(t, v.IsInt())
		assert.True(t, v.IsInteger())
		assert.True(t, v.IsNumber())
		assert.Equal(t, i, v.IntVal())
	}

	for _, u := range []uint32{0, 1, math.MaxUint32} {
		v.SetUint(u)
		assert.True(t, v.IsUint())
		assert.Equal(t, u, v.UintVal())
		f, ok := v.Float()
		assert.True(t, ok)
		assert.Equal(t, float64(u), f)
	}

	for _, f := range []float64{0, -0.5, math.Pi, math.MaxFloat64, math.Inf(-1)} {
		v.SetFloat(f)
		assert.True(t, v.IsFloat())
		assert.Equal(t, f, v.FloatVal())
	}
	v.SetFloat(math.NaN())
	assert.True(t, math.IsNaN(v.FloatVal()))

	v.SetBool(true)
	assert.True(t, v.IsBool())
	assert.True(t, v.BoolVal())
	v.SetBool(false)
	assert.False(t, v.BoolVal())

	v.SetNull()
	assert.True(t, v.IsNull())
}

func TestValue_objectKinds(t *testing.T) {
	var v Value
	type handle struct{ id int }
	obj := &handle{id: 7}

	for _, k := range []Kind{KindObject, KindFunction, KindArray, KindTypedArray, KindArrayBuffer, KindDataView, KindPromise, KindResolver} {
		v.SetObject(obj, k)
		assert.Equal(t, k, v.Kind())
		assert.True(t, v.IsObject())
		assert.False(t, v.OwnsMemory())
		assert.Same(t, obj, v.ObjectVal())
	}

	v.SetObject(obj, KindUTF8)
	assert.Equal(t, KindObject, v.Kind())

	v.SetInt(1)
	assert.Nil(t, v.ObjectVal())
}

func TestValue_copiedStringIsIndependent(t *testing.T) {
	a := newCountingAllocator(t)

	src := []byte("hello, world")
	var v Value
	v.SetUTF8(src, len(src), true)
	require.True(t, v.OwnsMemory())
	assert.Equal(t, 1, a.live())

	for i := range src {
		src[i] = 'x'
	}
	assert.Equal(t, "hello, world", string(v.UTF8Str()))
	assert.Equal(t, 12, v.Len())

	wide := utf16.Encode([]rune("héllo 🌍"))
	v.SetUTF16(wide, len(wide), true)
	assert.Equal(t, 1, a.live())
	for i := range wide {
		wide[i] = 'x'
	}
	s, ok := v.Text()
	assert.True(t, ok)
	assert.Equal(t, "héllo 🌍", s)

	v.Reset()
	assert.Equal(t, 0, a.live())
	assert.Equal(t, a.allocs, a.frees)
}

func TestValue_borrowedStringAliases(t *testing.T) {
	a := newCountingAllocator(t)

	src := []byte("abc")
	var v Value
	v.SetUTF8(src, -1, false)
	assert.False(t, v.OwnsMemory())
	assert.Equal(t, 0, a.allocs)

	src[0] = 'z'
	assert.Equal(t, "zbc", string(v.UTF8Str()))
	v.Reset()
	assert.Equal(t, 0, a.frees)
}

func TestValue_lengthSemantics(t *testing.T) {
	var v Value

	buf := []byte("abc\x00def")
	v.SetUTF8(buf, -1, true)
	assert.Equal(t, "abc", string(v.UTF8Str()))

	v.SetUTF8(buf, len(buf), true)
	assert.Equal(t, 7, v.Len())
	assert.Equal(t, "abc\x00def", string(v.UTF8Str()))

	v.SetUTF8(buf, 2, false)
	assert.Equal(t, "ab", string(v.UTF8Str()))

	v.SetUTF8(buf, 100, false)
	assert.Equal(t, len(buf), v.Len())

	wide := []uint16{'h', 'i', 0, 'x'}
	v.SetUTF16(wide, -1, false)
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []uint16{'h', 'i'}, v.UTF16Str())

	v.SetString("")
	assert.True(t, v.IsUTF8())
	assert.Equal(t, 0, v.Len())
	assert.Empty(t, v.UTF8Str())
	v.Reset()
}

func TestValue_copyIsTerminated(t *testing.T) {
	a := newCountingAllocator(t)

	var v Value
	v.SetUTF8([]byte("xyz"), 3, true)
	require.Equal(t, 1, a.live())
	raw := v.u8
	require.Len(t, raw, 4)
	assert.Equal(t, byte(0), raw[3])
	v.Reset()
}

func TestValue_selfAssignment(t *testing.T) {
	a := newCountingAllocator(t)

	var v Value
	v.SetString("self")
	v.SetUTF8(v.UTF8Str(), v.Len(), true)
	assert.Equal(t, "self", string(v.UTF8Str()))
	assert.Equal(t, 1, a.live())

	v.Set(&v, true)
	assert.Equal(t, "self", string(v.UTF8Str()))
	assert.Equal(t, 1, a.live())

	v.Set(&v, false)
	assert.True(t, v.OwnsMemory())
	assert.Equal(t, 1, a.live())

	v.Reset()
	assert.Equal(t, 0, a.live())
}

func TestValue_Set(t *testing.T) {
	newCountingAllocator(t)

	var src, dst Value
	src.SetString("shared")

	dst.Set(&src, false)
	assert.False(t, dst.OwnsMemory())
	assert.Equal(t, "shared", string(dst.UTF8Str()))

	dst.Set(&src, true)
	assert.True(t, dst.OwnsMemory())
	src.Reset()
	assert.Equal(t, "shared", string(dst.UTF8Str()))

	src.SetFloat(2.5)
	dst.Set(&src, true)
	assert.Equal(t, 2.5, dst.FloatVal())
	assert.False(t, dst.OwnsMemory())
}

// Every buffer allocated by a value is freed exactly once, across random
// sequences of Set operations.
func TestValue_ownershipExclusivity(t *testing.T) {
	a := newCountingAllocator(t)
	rng := rand.New(rand.NewSource(1))

	borrowed := []byte("borrowed bytes")
	borrowed16 := utf16.Encode([]rune("borrowed units"))
	var other Value
	other.SetString("other")

	values := make([]Value, 8)
	for i := 0; i < 1000; i++ {
		v := &values[rng.Intn(len(values))]
		switch rng.Intn(11) {
		case 0:
			v.SetNull()
		case 1:
			v.SetInt(rng.Int31())
		case 2:
			v.SetUint(rng.Uint32())
		case 3:
			v.SetFloat(rng.Float64())
		case 4:
			v.SetBool(rng.Intn(2) == 0)
		case 5:
			v.SetUTF8(borrowed, rng.Intn(len(borrowed)+1), rng.Intn(2) == 0)
		case 6:
			v.SetUTF16(borrowed16, -1, rng.Intn(2) == 0)
		case 7:
			v.SetString("owned")
		case 8:
			v.SetObject(&other, KindObject)
		case 9:
			v.Set(v, rng.Intn(2) == 0)
		case 10:
			v.Set(&other, rng.Intn(2) == 0)
		}

		want := 1 // other
		for j := range values {
			if values[j].OwnsMemory() {
				want++
			}
		}
		require.Equal(t, want, a.live(), "iteration %d", i)
	}

	for j := range values {
		values[j].Reset()
	}
	other.Reset()
	assert.Equal(t, 0, a.live())
	assert.Equal(t, a.allocs, a.frees)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "promise", KindPromise.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.True(t, KindResolver.IsObject())
	assert.False(t, KindUTF16.IsObject())
	assert.True(t, KindUTF16.IsString())
}

func TestTypedArrayType(t *testing.T) {
	assert.Equal(t, 8, Float64Array.ElementSize())
	assert.Equal(t, 1, Uint8ClampedArray.ElementSize())
	assert.Equal(t, "BigInt64Array", Int64Array.String())
	assert.False(t, NotTypedArray.Valid())
	assert.Equal(t, 0, NotTypedArray.ElementSize())
	assert.Len(t, TypedArrayTypes, 11)
	for _, typ := range TypedArrayTypes {
		assert.True(t, typ.Valid(), typ.String())
	}
}

func TestPromiseState_String(t *testing.T) {
	assert.Equal(t, PromiseState(-1), PromiseNoState)
	assert.Equal(t, "pending", PromisePending.String())
	assert.Equal(t, "rejected", PromiseRejected.String())
}

func TestException_Error(t *testing.T) {
	e := Exception{Type: ExceptionScript, Message: "boom"}
	assert.Equal(t, "jsenv: script exception: boom", e.Error())
	assert.Equal(t, "native", ExceptionNative.String())
}

func TestWithScope_popsOnPanic(t *testing.T) {
	s := &scopeCounter{}
	assert.Panics(t, func() {
		WithScope(s, func() { panic("boom") })
	})
	assert.Equal(t, 0, s.depth)
	assert.Equal(t, 1, s.pushes)
}

type scopeCounter struct {
	depth, pushes int
}

func (s *scopeCounter) PushScope() { s.depth++; s.pushes++ }
func (s *scopeCounter) PopScope()  { s.depth-- }
