package number

import (
	"math"
	"strconv"
	"strings"

	"github.com/uganh16/lua51vm/pkg/lua"
)

func FloorDiv(a, b lua.Number) lua.Number {
	return math.Floor(a / b)
}

/* a - floor(a/b)*b: the result takes the sign of the divisor */
func Mod(a, b lua.Number) lua.Number {
	return a - FloorDiv(a, b)*b
}

func Pow(a, b lua.Number) lua.Number {
	return math.Pow(a, b)
}

func IsInteger(f lua.Number) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0)
}

func FloatToInteger(f lua.Number) (int64, bool) {
	if !IsInteger(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

/**
 * converts a string to a number following lua_str2number: a decimal
 * floating-point literal, or an optionally signed hexadecimal literal with
 * an optional fraction. Leading and trailing white space is ignored.
 */
func ParseFloat(s string) (lua.Number, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, ok := parseHex(s); ok {
		return f, true
	}
	if !isDecimal(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true /* overflow yields +-HUGE_VAL */
		}
		return 0, false
	}
	return f, true
}

/* rejects spellings strconv accepts but Lua does not ("inf", "nan", "1_0") */
func isDecimal(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func parseHex(s string) (lua.Number, bool) {
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	if len(s) < 3 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0, false
	}
	s = s[2:]
	var f lua.Number
	digits := 0
	i := 0
	for ; i < len(s) && hexValue(s[i]) >= 0; i++ {
		f = f*16 + lua.Number(hexValue(s[i]))
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		scale := 1.0 / 16
		for ; i < len(s) && hexValue(s[i]) >= 0; i++ {
			f += lua.Number(hexValue(s[i])) * scale
			scale /= 16
			digits++
		}
	}
	if digits == 0 || i != len(s) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func hexValue(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

/* LUAI_NUMFFORMAT "%.14g" */
func FormatFloat(f lua.Number) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if IsInteger(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', 14, 64)
}

/**
 * converts an integer to a "floating point byte", represented as
 * (eeeeexxx), where the real value is (1xxx) * 2^(eeeee - 1) if
 * eeeee != 0 and (xxx) otherwise.
 */
func Int2fb(x uint) int {
	e := 0 /* exponent */
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return int(x)
	}
	return ((e + 1) << 3) | (int(x) - 8)
}

/* converts back */
func Fb2int(x int) int {
	e := (x >> 3) & 31
	if e == 0 {
		return x
	}
	return ((x & 7) + 8) << (e - 1)
}
