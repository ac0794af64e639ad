// Package keycodec maps typed keys to plain strings so that any key can be
// stored in a string-keyed partition, and decodes them back.
//
// A non-string key is written as the U+FEFF sentinel, a one-character tag
// and a payload. Strings are written as-is.
package keycodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/akostadinov/chunchun/types"
)

// Sentinel prefixes every encoded non-string key.
const Sentinel = '\uFEFF'

const (
	tagShort  = '1'
	tagByte   = '2'
	tagLong   = '3'
	tagInt    = '4'
	tagDouble = '5'
	tagFloat  = '6'
	tagBool   = '7'
	tagBytes  = '8'
	tagPost   = 'p'
)

var (
	// ErrUnsupported is returned for strings carrying the sentinel without a known tag.
	ErrUnsupported = errors.New("unsupported key encoding")
	// ErrMalformed is returned when the payload of a known tag cannot be parsed.
	ErrMalformed = errors.New("malformed key payload")
)

// Key is one of the key variants defined in this package.
type Key interface {
	tag() rune
	payload() string
}

type (
	String string
	Short  int16
	Byte   int8
	Long   int64
	Int    int32
	Double float64
	Float  float32
	Bool   bool
	Bytes  []byte
	Post   types.PostKey
)

func (String) tag() rune { return 0 }
func (Short) tag() rune  { return tagShort }
func (Byte) tag() rune   { return tagByte }
func (Long) tag() rune   { return tagLong }
func (Int) tag() rune    { return tagInt }
func (Double) tag() rune { return tagDouble }
func (Float) tag() rune  { return tagFloat }
func (Bool) tag() rune   { return tagBool }
func (Bytes) tag() rune  { return tagBytes }
func (Post) tag() rune   { return tagPost }

func (k String) payload() string { return string(k) }
func (k Short) payload() string  { return strconv.FormatInt(int64(k), 10) }
func (k Byte) payload() string   { return strconv.FormatInt(int64(k), 10) }
func (k Long) payload() string   { return strconv.FormatInt(int64(k), 10) }
func (k Int) payload() string    { return strconv.FormatInt(int64(k), 10) }
func (k Double) payload() string { return strconv.FormatFloat(float64(k), 'g', -1, 64) }
func (k Float) payload() string  { return strconv.FormatFloat(float64(k), 'g', -1, 32) }
func (k Bool) payload() string   { return strconv.FormatBool(bool(k)) }
func (k Bytes) payload() string  { return base64.StdEncoding.EncodeToString(k) }
func (k Post) payload() string   { return types.PostKey(k).String() }

// Encode returns the string form of k.
func Encode(k Key) string {
	if s, ok := k.(String); ok {
		return string(s)
	}
	var b strings.Builder
	b.WriteRune(Sentinel)
	b.WriteRune(k.tag())
	b.WriteString(k.payload())
	return b.String()
}

// EncodePost is shorthand for Encode(Post(key)).
func EncodePost(key types.PostKey) string {
	return Encode(Post(key))
}

type decoder func(payload string) (Key, error)

var decoders = map[rune]decoder{
	tagShort: func(p string) (Key, error) {
		v, err := strconv.ParseInt(p, 10, 16)
		return Short(v), err
	},
	tagByte: func(p string) (Key, error) {
		v, err := strconv.ParseInt(p, 10, 8)
		return Byte(v), err
	},
	tagLong: func(p string) (Key, error) {
		v, err := strconv.ParseInt(p, 10, 64)
		return Long(v), err
	},
	tagInt: func(p string) (Key, error) {
		v, err := strconv.ParseInt(p, 10, 32)
		return Int(v), err
	},
	tagDouble: func(p string) (Key, error) {
		v, err := strconv.ParseFloat(p, 64)
		return Double(v), err
	},
	tagFloat: func(p string) (Key, error) {
		v, err := strconv.ParseFloat(p, 32)
		return Float(v), err
	},
	tagBool: func(p string) (Key, error) {
		v, err := strconv.ParseBool(p)
		return Bool(v), err
	},
	tagBytes: func(p string) (Key, error) {
		v, err := base64.StdEncoding.DecodeString(p)
		return Bytes(v), err
	},
	tagPost: func(p string) (Key, error) {
		v, err := types.ParsePostKey(p)
		return Post(v), err
	},
}

// Decode parses s back into a Key. Strings without the sentinel decode to String.
func Decode(s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, string(Sentinel))
	if !ok {
		return String(s), nil
	}
	if rest == "" {
		return nil, fmt.Errorf("%w: missing tag", ErrUnsupported)
	}
	tag, size := utf8.DecodeRuneInString(rest)
	dec, ok := decoders[tag]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tag %q", ErrUnsupported, tag)
	}
	k, err := dec(rest[size:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w: tag %q: %v", ErrUnsupported, ErrMalformed, tag, err)
	}
	return k, nil
}

// DecodePost decodes s and requires it to be a PostKey.
func DecodePost(s string) (types.PostKey, error) {
	k, err := Decode(s)
	if err != nil {
		return types.PostKey{}, err
	}
	p, ok := k.(Post)
	if !ok {
		return types.PostKey{}, fmt.Errorf("%w: %q is not a post key", ErrUnsupported, s)
	}
	return types.PostKey(p), nil
}
