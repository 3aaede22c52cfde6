package run

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Scalar holds nil (undef), bool, int64, float64, string, *Array or *Hash.
	// Container values are references.
	Scalar struct {
		V  any
		RO bool
	}

	// Array elements may be absent (nil).
	Array struct {
		E     []*Scalar
		Shape int // fixed size, -1 if not shaped
	}

	Hash struct {
		M    map[string]*Scalar
		Keys []string
	}

	Glob struct {
		Name string

		SV *Scalar
		AV *Array
		HV *Hash
	}
)

var (
	Yes = &Scalar{V: true, RO: true}
	No  = &Scalar{V: false, RO: true}
)

// NewConst returns a read-only literal.
func NewConst(v any) *Scalar {
	switch x := v.(type) {
	case int:
		v = int64(x)
	case *Scalar:
		return &Scalar{V: x.V, RO: true}
	}

	return &Scalar{V: v, RO: true}
}

func Bool(b bool) *Scalar {
	if b {
		return Yes
	}

	return No
}

func NewArray(shape int) *Array {
	a := &Array{Shape: shape}

	if shape >= 0 {
		a.E = make([]*Scalar, shape)
	}

	return a
}

// ArrayOf makes an array of values. nil stays an absent element.
func ArrayOf(vals ...any) *Array {
	a := &Array{Shape: -1}

	for _, v := range vals {
		switch v := v.(type) {
		case nil:
			a.E = append(a.E, nil)
		case *Scalar:
			a.E = append(a.E, v)
		default:
			a.E = append(a.E, &Scalar{V: v})
		}
	}

	return a
}

func NewHash() *Hash {
	return &Hash{M: map[string]*Scalar{}}
}

func addr(x any) uintptr { return reflect.ValueOf(x).Pointer() }

func (s *Scalar) Defined() bool { return s != nil && s.V != nil }

func (s *Scalar) Truth() bool {
	if s == nil {
		return false
	}

	switch v := s.V.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != "" && v != "0"
	}

	return true
}

func (s *Scalar) String() string {
	if s == nil {
		return ""
	}

	switch v := s.V.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "1"
		}

		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case string:
		return v
	case *Array:
		return "ARRAY(0x" + strconv.FormatUint(uint64(addr(v)), 16) + ")"
	case *Hash:
		return "HASH(0x" + strconv.FormatUint(uint64(addr(v)), 16) + ")"
	}

	return "?"
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return "NaN"
	}

	return strconv.FormatFloat(f, 'g', 15, 64)
}

// Num returns the numeric value as int64 or float64.
// ok is false if a string is not entirely a number.
func (s *Scalar) Num() (v any, ok bool) {
	if s == nil {
		return int64(0), true
	}

	switch x := s.V.(type) {
	case nil:
		return int64(0), true
	case bool:
		if x {
			return int64(1), true
		}

		return int64(0), true
	case int64, float64:
		return x, true
	case string:
		return parseNum(x)
	case *Array, *Hash:
		return int64(addr(x)), true
	}

	return int64(0), false
}

func (s *Scalar) Int() (int64, bool) {
	v, ok := s.Num()

	switch v := v.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, ok
		}

		return int64(v), ok
	default:
		return v.(int64), ok
	}
}

func (s *Scalar) Float() (float64, bool) {
	v, ok := s.Num()

	switch v := v.(type) {
	case float64:
		return v, ok
	default:
		return float64(v.(int64)), ok
	}
}

// parseNum reads the longest numeric prefix the way the language does.
func parseNum(s string) (any, bool) {
	t := strings.TrimLeft(s, " \t\n\r\f\v")
	t = strings.TrimRight(t, " \t\n\r\f\v")

	if t == "" {
		return int64(0), false
	}

	i := 0
	if t[i] == '+' || t[i] == '-' {
		i++
	}

	rest := strings.ToLower(t[i:])

	switch {
	case strings.HasPrefix(rest, "inf"):
		f := math.Inf(1)
		if t[0] == '-' {
			f = -f
		}

		return f, rest == "inf" || rest == "infinity"
	case strings.HasPrefix(rest, "nan"):
		return math.NaN(), rest == "nan"
	}

	digits := i
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}

	isInt := true
	mant := i - digits

	if i < len(t) && t[i] == '.' {
		isInt = false
		i++

		fr := i
		for i < len(t) && t[i] >= '0' && t[i] <= '9' {
			i++
		}

		mant += i - fr
	}

	if mant == 0 {
		return int64(0), false
	}

	if i < len(t) && (t[i] == 'e' || t[i] == 'E') {
		j := i + 1
		if j < len(t) && (t[j] == '+' || t[j] == '-') {
			j++
		}

		e := j
		for j < len(t) && t[j] >= '0' && t[j] <= '9' {
			j++
		}

		if j > e {
			isInt = false
			i = j
		}
	}

	ok := i == len(t)
	num := t[:i]

	if isInt {
		if v, err := strconv.ParseInt(num, 10, 64); err == nil {
			return v, ok
		}
	}

	f, _ := strconv.ParseFloat(num, 64)

	return f, ok
}

// Set copies the value of x into s.
func (s *Scalar) Set(x *Scalar) {
	if x == nil {
		s.V = nil
		return
	}

	s.V = x.V
}

func (s *Scalar) Copy() *Scalar {
	if s == nil {
		return &Scalar{}
	}

	return &Scalar{V: s.V}
}

func (s *Scalar) Length() (int, bool) {
	if !s.Defined() {
		return 0, false
	}

	return utf8.RuneCountInString(s.String()), true
}

func (s *Scalar) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s == nil || s.V == nil {
		return e.AppendNil(b)
	}

	if v, ok := s.V.(int64); ok {
		return e.AppendInt(b, int(v))
	}

	return e.AppendString(b, s.String())
}

// Get returns the element or nil if absent.
func (a *Array) Get(i int) *Scalar {
	if i < 0 || i >= len(a.E) {
		return nil
	}

	return a.E[i]
}

func (a *Array) Len() int { return len(a.E) }

// Fetch returns the element at i, creating it if create is set.
// Negative indexes count from the end.
func (a *Array) Fetch(i int64, create bool) (*Scalar, bool) {
	if i < 0 {
		i += int64(len(a.E))
		if i < 0 {
			return nil, false
		}
	}

	if i < int64(len(a.E)) && a.E[i] != nil {
		return a.E[i], true
	}

	if !create {
		return nil, true
	}

	for int64(len(a.E)) <= i {
		a.E = append(a.E, nil)
	}

	s := &Scalar{}
	a.E[i] = s

	return s, true
}

func (a *Array) Exists(i int64) bool {
	if i < 0 {
		i += int64(len(a.E))
	}

	return i >= 0 && i < int64(len(a.E)) && a.E[i] != nil
}

func (a *Array) Delete(i int64) *Scalar {
	if i < 0 {
		i += int64(len(a.E))
	}

	if i < 0 || i >= int64(len(a.E)) {
		return nil
	}

	s := a.E[i]
	a.E[i] = nil

	if a.Shape < 0 {
		for len(a.E) != 0 && a.E[len(a.E)-1] == nil {
			a.E = a.E[:len(a.E)-1]
		}
	}

	return s
}

func (h *Hash) Len() int { return len(h.Keys) }

func (h *Hash) Fetch(k string, create bool) *Scalar {
	if s, ok := h.M[k]; ok {
		return s
	}

	if !create {
		return nil
	}

	s := &Scalar{}

	h.M[k] = s
	h.Keys = append(h.Keys, k)

	return s
}

func (h *Hash) Exists(k string) bool {
	_, ok := h.M[k]
	return ok
}

func (h *Hash) Delete(k string) *Scalar {
	s, ok := h.M[k]
	if !ok {
		return nil
	}

	delete(h.M, k)

	for i, x := range h.Keys {
		if x == k {
			h.Keys = append(h.Keys[:i], h.Keys[i+1:]...)
			break
		}
	}

	return s
}

func (g *Glob) Scalar() *Scalar {
	if g.SV == nil {
		g.SV = &Scalar{}
	}

	return g.SV
}

func (g *Glob) Array() *Array {
	if g.AV == nil {
		g.AV = NewArray(-1)
	}

	return g.AV
}

func (g *Glob) Hash() *Hash {
	if g.HV == nil {
		g.HV = NewHash()
	}

	return g.HV
}
