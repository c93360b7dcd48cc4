package monitor

import (
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ParseAddress parses a 16-bit address written as $hex, 0xhex, #decimal or
// bare hex.
func ParseAddress(s string) (uint16, bool) {
	s = strings.TrimSpace(s)
	base := 16
	switch {
	case s == "":
		return 0, false
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 10
	case strings.HasPrefix(s, "$"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 16)
	return uint16(v), err == nil
}

// checkAddress reads argument n as an address, accepting a number or any
// string ParseAddress understands.
func checkAddress(L *lua.LState, n int) uint16 {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		if v < 0 || v > 0xFFFF {
			L.ArgError(n, "address out of range")
		}
		return uint16(v)
	case lua.LString:
		addr, ok := ParseAddress(string(v))
		if !ok {
			L.ArgError(n, "bad address "+strconv.Quote(string(v)))
		}
		return addr
	}
	L.TypeError(n, lua.LTNumber)
	return 0
}
