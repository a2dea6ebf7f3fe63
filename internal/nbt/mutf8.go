package nbt

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"
)

var errMalformedString = errors.New("nbt: malformed modified UTF-8 string")

// appendMUTF8 按 Java modified UTF-8 规则编码：NUL 写成 0xC0 0x80，
// 补充平面字符拆成两个代理项，各占 3 字节。
func appendMUTF8(dst []byte, s string) []byte {
	for _, r := range s {
		switch {
		case r == 0:
			dst = append(dst, 0xC0, 0x80)
		case r < 0x80:
			dst = append(dst, byte(r))
		case r < 0x800:
			dst = append(dst, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r <= 0xFFFF:
			dst = appendMUTF8Unit(dst, uint16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			dst = appendMUTF8Unit(dst, uint16(hi))
			dst = appendMUTF8Unit(dst, uint16(lo))
		}
	}
	return dst
}

func appendMUTF8Unit(dst []byte, u uint16) []byte {
	return append(dst, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
}

func decodeMUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	out := make([]byte, 0, len(b))
	var pending rune = -1
	flush := func() {
		if pending >= 0 {
			out = utf8.AppendRune(out, utf8.RuneError)
			pending = -1
		}
	}
	for i := 0; i < len(b); {
		c := b[i]
		var unit rune
		switch {
		case c == 0:
			return "", errMalformedString
		case c < 0x80:
			unit = rune(c)
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errMalformedString
			}
			unit = rune(c&0x1F)<<6 | rune(b[i+1]&0x3F)
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errMalformedString
			}
			unit = rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			i += 3
		default:
			return "", errMalformedString
		}

		switch {
		case utf16.IsSurrogate(unit) && unit < 0xDC00:
			flush()
			pending = unit
		case utf16.IsSurrogate(unit):
			if pending >= 0 {
				out = utf8.AppendRune(out, utf16.DecodeRune(pending, unit))
				pending = -1
			} else {
				out = utf8.AppendRune(out, utf8.RuneError)
			}
		default:
			flush()
			out = utf8.AppendRune(out, unit)
		}
	}
	flush()
	return string(out), nil
}
