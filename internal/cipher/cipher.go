// Package cipher 由邮箱推导出五位行为图案序列
//
// 键盘被划分为四个区域，邮箱中前五个字母各自映射到所属区域的符号：
//
//	A: q w e r t
//	B: y u i o p
//	C: a s d f g z x c v
//	D: h j k l b n m
//
// 字母不足五个时用 DefaultSymbol 补齐。
package cipher

import (
	"crypto/subtle"
	"errors"
)

// Length 图案序列长度
const Length = 5

// Symbol 图案符号，取值 A-D
type Symbol byte

const (
	SymbolA Symbol = 'A'
	SymbolB Symbol = 'B'
	SymbolC Symbol = 'C'
	SymbolD Symbol = 'D'

	// DefaultSymbol 补位符号
	DefaultSymbol = SymbolA
)

// ErrInvalidSequence 客户端提交的图案格式错误
var ErrInvalidSequence = errors.New("pattern must be exactly 5 symbols of A-D")

// Sequence 五位图案序列
type Sequence [Length]Symbol

var quadrants = [26]Symbol{
	'a' - 'a': SymbolC, 'b' - 'a': SymbolD, 'c' - 'a': SymbolC, 'd' - 'a': SymbolC,
	'e' - 'a': SymbolA, 'f' - 'a': SymbolC, 'g' - 'a': SymbolC, 'h' - 'a': SymbolD,
	'i' - 'a': SymbolB, 'j' - 'a': SymbolD, 'k' - 'a': SymbolD, 'l' - 'a': SymbolD,
	'm' - 'a': SymbolD, 'n' - 'a': SymbolD, 'o' - 'a': SymbolB, 'p' - 'a': SymbolB,
	'q' - 'a': SymbolA, 'r' - 'a': SymbolA, 's' - 'a': SymbolC, 't' - 'a': SymbolA,
	'u' - 'a': SymbolB, 'v' - 'a': SymbolC, 'w' - 'a': SymbolA, 'x' - 'a': SymbolC,
	'y' - 'a': SymbolB, 'z' - 'a': SymbolC,
}

// SymbolFor 返回单个字母所在区域，非字母返回 false
func SymbolFor(r rune) (Symbol, bool) {
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	if r < 'a' || r > 'z' {
		return 0, false
	}
	return quadrants[r-'a'], true
}

// Pattern 计算邮箱对应的图案序列，纯函数
func Pattern(email string) Sequence {
	var seq Sequence
	n := 0
	for _, r := range email {
		if n == Length {
			break
		}
		if s, ok := SymbolFor(r); ok {
			seq[n] = s
			n++
		}
	}
	for ; n < Length; n++ {
		seq[n] = DefaultSymbol
	}
	return seq
}

// ParseSequence 校验并解析客户端提交的图案
// 每一位必须恰好是大写的 A、B、C 或 D，小写和空白都视为格式错误
func ParseSequence(parts []string) (Sequence, error) {
	var seq Sequence
	if len(parts) != Length {
		return seq, ErrInvalidSequence
	}
	for i, p := range parts {
		if len(p) != 1 {
			return seq, ErrInvalidSequence
		}
		s := Symbol(p[0])
		if s < SymbolA || s > SymbolD {
			return seq, ErrInvalidSequence
		}
		seq[i] = s
	}
	return seq, nil
}

// Equal 常量时间比较
func (s Sequence) Equal(other Sequence) bool {
	a, b := s.bytes(), other.bytes()
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func (s Sequence) bytes() [Length]byte {
	var b [Length]byte
	for i, sym := range s {
		b[i] = byte(sym)
	}
	return b
}

// Strings 转换为字符串切片
func (s Sequence) Strings() []string {
	out := make([]string, Length)
	for i, sym := range s {
		out[i] = string(rune(sym))
	}
	return out
}

func (s Sequence) String() string {
	b := s.bytes()
	return string(b[:])
}
