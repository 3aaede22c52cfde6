package run

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/nikandfor/hacked/hfmt"

	"github.com/perl11/cperl-sub000/compiler/op"
)

func ppArith(m *Machine, o *op.Node) (*op.Node, error) {
	r := m.popScalar()
	l := m.popScalar()

	a, err := m.num(l, o)
	if err != nil {
		return nil, err
	}

	b, err := m.num(r, o)
	if err != nil {
		return nil, err
	}

	v, err := m.arith(o.Type, a, b)
	if err != nil {
		return nil, err
	}

	m.push(&Scalar{V: v})

	return o.Next(), nil
}

func (m *Machine) arith(t op.Type, a, b any) (any, error) {
	x, xok := a.(int64)
	y, yok := b.(int64)

	if t == op.Modulo {
		x, y = asInt(a), asInt(b)

		if y == 0 {
			return nil, m.errorf("Illegal modulus zero")
		}

		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}

		return r, nil
	}

	if xok && yok {
		switch t {
		case op.Add:
			r := x + y
			if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
				break
			}

			return r, nil
		case op.Subtract:
			r := x - y
			if (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0) {
				break
			}

			return r, nil
		case op.Multiply:
			if x == 0 || y == 0 {
				return int64(0), nil
			}

			r := x * y
			if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
				break
			}

			return r, nil
		case op.Divide:
			if y == 0 {
				return nil, m.errorf("Illegal division by zero")
			}

			if x%y == 0 && !(x == math.MinInt64 && y == -1) {
				return x / y, nil
			}
		}
	}

	f, g := asFloat(a), asFloat(b)

	switch t {
	case op.Add:
		return f + g, nil
	case op.Subtract:
		return f - g, nil
	case op.Multiply:
		return f * g, nil
	case op.Divide:
		if g == 0 {
			return nil, m.errorf("Illegal division by zero")
		}

		return f / g, nil
	}

	op.Panicf("arith: %v", t)

	return nil, nil
}

func asInt(v any) int64 {
	switch v := v.(type) {
	case float64:
		return int64(v)
	default:
		return v.(int64)
	}
}

func asFloat(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	default:
		return float64(v.(int64))
	}
}

func ppNumCmp(m *Machine, o *op.Node) (*op.Node, error) {
	r := m.popScalar()
	l := m.popScalar()

	a, err := m.num(l, o)
	if err != nil {
		return nil, err
	}

	b, err := m.num(r, o)
	if err != nil {
		return nil, err
	}

	var c int
	var nan bool

	x, xok := a.(int64)
	y, yok := b.(int64)

	if xok && yok {
		c = cmpInt(x, y)
	} else {
		f, g := asFloat(a), asFloat(b)

		switch {
		case math.IsNaN(f) || math.IsNaN(g):
			nan = true
		case f < g:
			c = -1
		case f > g:
			c = 1
		}
	}

	var res bool

	if !nan {
		switch o.Type {
		case op.Lt:
			res = c < 0
		case op.Gt:
			res = c > 0
		case op.Le:
			res = c <= 0
		case op.Ge:
			res = c >= 0
		case op.Eq:
			res = c == 0
		case op.Ne:
			res = c != 0
		}
	} else {
		res = o.Type == op.Ne
	}

	m.push(Bool(res))

	return o.Next(), nil
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}

	return 0
}

func ppStrCmp(m *Machine, o *op.Node) (*op.Node, error) {
	r := m.popScalar()
	l := m.popScalar()

	a, err := m.str(l, o)
	if err != nil {
		return nil, err
	}

	b, err := m.str(r, o)
	if err != nil {
		return nil, err
	}

	m.push(Bool((a == b) == (o.Type == op.Seq)))

	return o.Next(), nil
}

func ppConcat(m *Machine, o *op.Node) (*op.Node, error) {
	r := m.popScalar()
	l := m.popScalar()

	a, err := m.str(l, o)
	if err != nil {
		return nil, err
	}

	b, err := m.str(r, o)
	if err != nil {
		return nil, err
	}

	m.push(&Scalar{V: a + b})

	return o.Next(), nil
}

func ppNegate(m *Machine, o *op.Node) (*op.Node, error) {
	s := m.popScalar()

	if str, ok := s.V.(string); ok && str != "" {
		if _, num := parseNum(str); !num {
			r := []rune(str)

			switch {
			case unicode.IsLetter(r[0]) || r[0] == '_':
				m.push(&Scalar{V: "-" + str})
				return o.Next(), nil
			case r[0] == '-' && len(r) > 1 && !unicode.IsDigit(r[1]):
				m.push(&Scalar{V: "+" + string(r[1:])})
				return o.Next(), nil
			case r[0] == '+' && len(r) > 1 && !unicode.IsDigit(r[1]):
				m.push(&Scalar{V: "-" + string(r[1:])})
				return o.Next(), nil
			}
		}
	}

	v, err := m.num(s, o)
	if err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case int64:
		if v == math.MinInt64 {
			m.push(&Scalar{V: -float64(v)})
		} else {
			m.push(&Scalar{V: -v})
		}
	case float64:
		m.push(&Scalar{V: -v})
	}

	return o.Next(), nil
}

func ppNot(m *Machine, o *op.Node) (*op.Node, error) {
	s := m.popScalar()

	m.push(Bool(!s.Truth()))

	return o.Next(), nil
}

func ppLength(m *Machine, o *op.Node) (*op.Node, error) {
	s := m.popScalar()

	n, ok := s.Length()

	switch {
	case !ok:
		m.push(&Scalar{})
	case m.boolean(o):
		m.push(Bool(n != 0))
	default:
		m.push(&Scalar{V: int64(n)})
	}

	return o.Next(), nil
}

func ppCase(m *Machine, o *op.Node) (*op.Node, error) {
	s := m.popScalar()

	str, err := m.str(s, o)
	if err != nil {
		return nil, err
	}

	if o.Type == op.Lc {
		str = strings.ToLower(str)
	} else {
		str = strings.ToUpper(str)
	}

	m.push(&Scalar{V: str})

	return o.Next(), nil
}

func ppSprintf(m *Machine, o *op.Node) (*op.Node, error) {
	args := m.items()

	if len(args) == 0 {
		m.push(&Scalar{V: ""})
		return o.Next(), nil
	}

	f, err := m.str(args[0], o)
	if err != nil {
		return nil, err
	}

	res, err := m.sprintf(o, f, args[1:])
	if err != nil {
		return nil, err
	}

	m.push(&Scalar{V: res})

	return o.Next(), nil
}

// Conversion is one % directive of a format.
type Conversion struct {
	Flags string
	Width string
	Prec  string
	Verb  byte

	Star   bool // width or precision from arguments
	Vector bool
}

// ParseFormat splits a format into literal text and conversions.
// Text parts are passed to lit and directives to conv in order.
func ParseFormat(f string, lit func(s string), conv func(c Conversion, raw string)) {
	for len(f) != 0 {
		i := strings.IndexByte(f, '%')
		if i < 0 {
			lit(f)
			return
		}

		if i > 0 {
			lit(f[:i])
		}

		f = f[i:]

		j := 1
		var c Conversion

		for j < len(f) && strings.IndexByte("-+ 0#", f[j]) >= 0 {
			j++
		}

		c.Flags = f[1:j]

		if j < len(f) && f[j] == 'v' {
			c.Vector = true
			j++
		}

		w := j
		for j < len(f) && (f[j] >= '0' && f[j] <= '9' || f[j] == '*') {
			j++
		}

		c.Width = f[w:j]

		if j < len(f) && f[j] == '.' {
			j++

			p := j
			for j < len(f) && (f[j] >= '0' && f[j] <= '9' || f[j] == '*') {
				j++
			}

			c.Prec = "." + f[p:j]
		}

		for j < len(f) && strings.IndexByte("hlqLV", f[j]) >= 0 {
			j++
		}

		c.Star = strings.Contains(c.Width, "*") || strings.Contains(c.Prec, "*")

		if j < len(f) {
			c.Verb = f[j]
			j++
		}

		conv(c, f[:j])

		f = f[j:]
	}
}

func (m *Machine) sprintf(o *op.Node, f string, args []*Scalar) (string, error) {
	var b []byte
	var err error

	keep := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}

	next := func() *Scalar {
		if len(args) == 0 {
			keep(m.warnf("Missing argument in sprintf"))

			return &Scalar{}
		}

		s := args[0]
		args = args[1:]

		return s
	}

	starInt := func(spec string) string {
		if !strings.Contains(spec, "*") {
			return spec
		}

		v, e := m.toInt(next(), o)
		if e != nil && err == nil {
			keep(e)
		}

		return strings.Replace(spec, "*", strconv.FormatInt(v, 10), 1)
	}

	ParseFormat(f, func(s string) {
		b = append(b, s...)
	}, func(c Conversion, raw string) {
		if err != nil {
			return
		}

		width := starInt(c.Width)
		prec := starInt(c.Prec)

		if strings.HasPrefix(width, "-") {
			c.Flags += "-"
			width = width[1:]
		}

		spec := "%" + c.Flags + width + prec

		switch c.Verb {
		case '%':
			b = append(b, '%')
		case 'c':
			v, e := m.toInt(next(), o)
			keep(e)
			b = hfmt.Appendf(b, spec+"c", rune(v))
		case 's':
			s, e := m.str(next(), o)
			keep(e)
			b = hfmt.Appendf(b, spec+"s", s)
		case 'd', 'i', 'u':
			if c.Vector {
				s := next().String()

				for i, r := range []rune(s) {
					if i != 0 {
						b = append(b, '.')
					}

					b = hfmt.Appendf(b, spec+"d", r)
				}

				return
			}

			v, e := m.num(next(), o)
			keep(e)

			if f, ok := v.(float64); ok {
				v = int64(f)
			}

			b = hfmt.Appendf(b, spec+"d", v)
		case 'x', 'X', 'o', 'b', 'B':
			v, e := m.toInt(next(), o)
			keep(e)

			verb := c.Verb
			if verb == 'B' {
				verb = 'b'
			}

			b = hfmt.Appendf(b, spec+string(verb), uint64(v))
		case 'e', 'E', 'f', 'F', 'g', 'G':
			v, e := m.num(next(), o)
			keep(e)

			b = hfmt.Appendf(b, spec+string(c.Verb), asFloat(v))
		case 'n':
		default:
			if e := m.warnf("Invalid conversion in sprintf: \"%s\"", raw); e != nil {
				keep(e)
			}

			b = append(b, raw...)
		}
	})

	if err != nil {
		return "", err
	}

	if len(args) != 0 {
		if err := m.warnf("Redundant argument in sprintf"); err != nil {
			return "", err
		}
	}

	return string(b), nil
}
