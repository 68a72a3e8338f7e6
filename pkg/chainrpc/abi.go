package chainrpc

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/sha3"
)

// Selector returns the 4-byte function selector for a canonical signature,
// e.g. "storeVerification(bytes32,uint256,string)".
func Selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil)[:4])
	return sel
}

// EncodeCall ABI-encodes a contract call: selector followed by the head/tail
// encoding of the arguments. Supported argument types: [32]byte (bytes32),
// *big.Int and uint64 (uint256), string and []byte (dynamic).
func EncodeCall(signature string, args ...any) ([]byte, error) {
	sel := Selector(signature)

	heads := make([][]byte, len(args))
	var tail []byte
	headLen := 32 * len(args)

	for i, arg := range args {
		switch v := arg.(type) {
		case [32]byte:
			word := make([]byte, 32)
			copy(word, v[:])
			heads[i] = word
		case *big.Int:
			heads[i] = leftPadUint(v)
		case uint64:
			heads[i] = leftPadUint(new(big.Int).SetUint64(v))
		case string:
			heads[i] = leftPadUint(big.NewInt(int64(headLen + len(tail))))
			tail = append(tail, encodeDynamic([]byte(v))...)
		case []byte:
			heads[i] = leftPadUint(big.NewInt(int64(headLen + len(tail))))
			tail = append(tail, encodeDynamic(v)...)
		default:
			return nil, eris.Errorf("chainrpc: unsupported abi argument type %T", arg)
		}
	}

	out := make([]byte, 0, 4+headLen+len(tail))
	out = append(out, sel[:]...)
	for _, h := range heads {
		out = append(out, h...)
	}
	out = append(out, tail...)
	return out, nil
}

// encodeDynamic encodes a dynamic byte sequence: length word followed by the
// data right-padded to a 32-byte boundary.
func encodeDynamic(data []byte) []byte {
	out := leftPadUint(big.NewInt(int64(len(data))))
	out = append(out, data...)
	if rem := len(data) % 32; rem != 0 {
		out = append(out, make([]byte, 32-rem)...)
	}
	return out
}

func leftPadUint(n *big.Int) []byte {
	b := n.Bytes()
	word := make([]byte, 32)
	copy(word[32-len(b):], b)
	return word
}

// Word extracts the i-th 32-byte word from ABI-encoded return data.
func Word(data []byte, i int) ([]byte, error) {
	start := 32 * i
	if len(data) < start+32 {
		return nil, eris.Errorf("chainrpc: return data too short for word %d", i)
	}
	return data[start : start+32], nil
}

// DecodeUint64 decodes the i-th return word as uint64.
func DecodeUint64(data []byte, i int) (uint64, error) {
	word, err := Word(data, i)
	if err != nil {
		return 0, err
	}
	n := new(big.Int).SetBytes(word)
	if !n.IsUint64() {
		return 0, eris.Errorf("chainrpc: word %d overflows uint64", i)
	}
	return n.Uint64(), nil
}

// DecodeBytes32 decodes the i-th return word as bytes32.
func DecodeBytes32(data []byte, i int) ([32]byte, error) {
	var out [32]byte
	word, err := Word(data, i)
	if err != nil {
		return out, err
	}
	copy(out[:], word)
	return out, nil
}

// DecodeAddress decodes the i-th return word as a 0x-prefixed address.
func DecodeAddress(data []byte, i int) (string, error) {
	word, err := Word(data, i)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(word[12:]), nil
}

// DecodeString decodes a dynamic string whose offset lives in the i-th
// return word.
func DecodeString(data []byte, i int) (string, error) {
	offset, err := DecodeUint64(data, i)
	if err != nil {
		return "", err
	}
	if uint64(len(data)) < offset+32 {
		return "", eris.Errorf("chainrpc: string offset %d out of range", offset)
	}
	length := new(big.Int).SetBytes(data[offset : offset+32]).Uint64()
	start := offset + 32
	if uint64(len(data)) < start+length {
		return "", eris.Errorf("chainrpc: string length %d out of range", length)
	}
	return string(data[start : start+length]), nil
}

// EncodeHex renders bytes as a 0x-prefixed hex string.
func EncodeHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// DecodeHex parses a 0x-prefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	out, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, eris.Wrap(err, "chainrpc: decode hex")
	}
	return out, nil
}

// HashToBytes32 parses a 64-character hex content hash into a bytes32 value.
func HashToBytes32(hash string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(hash, "0x"))
	if err != nil {
		return out, eris.Wrap(err, "chainrpc: decode content hash")
	}
	if len(raw) != 32 {
		return out, eris.Errorf("chainrpc: content hash must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
