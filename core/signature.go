package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/layer-3/walletauth/internal/eth"
)

// AssertionVariant tags an embedded signed-token assertion
const AssertionVariant = 3

// Signature is the closed set of supported signature shapes.
// Implementations are RawSignature, Ed25519Signature and AssertionSignature.
type Signature interface {
	// Accept dispatches to the visitor method for the concrete variant
	Accept(v SignatureVisitor) bool
	sealed()
}

// SignatureVisitor must handle every Signature variant
type SignatureVisitor interface {
	VisitRaw(sig RawSignature) bool
	VisitEd25519(sig Ed25519Signature) bool
	VisitAssertion(sig AssertionSignature) bool
}

// RawSignature is a 0x-hex signature from which the signer address is recovered
type RawSignature struct {
	Hex string
}

func (s RawSignature) Accept(v SignatureVisitor) bool { return v.VisitRaw(s) }
func (RawSignature) sealed()                          {}

// Ed25519Signature is verified against a public key supplied with the login
type Ed25519Signature struct {
	Data []byte
}

func (s Ed25519Signature) Accept(v SignatureVisitor) bool { return v.VisitEd25519(s) }
func (Ed25519Signature) sealed()                          {}

// AssertionSignature is the signed-token proof used by social and passkey logins
type AssertionSignature struct {
	JWTHeader          string
	EphemeralPublicKey []byte
	EphemeralSignature []byte
	ExpiryDateSecs     int64
}

func (s AssertionSignature) Accept(v SignatureVisitor) bool { return v.VisitAssertion(s) }
func (AssertionSignature) sealed()                          {}

// Bytes decodes the byte encodings wallets put on the wire: arrays of numbers,
// index-keyed objects, {"data": ...} wrappers and hex strings.
type Bytes []byte

// UnmarshalJSON accepts any of the encodings listed on Bytes
func (b *Bytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := eth.DecodeHex(s)
		if err != nil {
			return fmt.Errorf("bytes: invalid hex: %w", err)
		}
		*b = decoded
		return nil

	case '[':
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		out, err := toBytes(values)
		if err != nil {
			return err
		}
		*b = out
		return nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if inner, ok := obj["data"]; ok {
			return b.UnmarshalJSON(inner)
		}
		return b.fromIndexed(obj)
	}

	return fmt.Errorf("bytes: unsupported encoding")
}

func (b *Bytes) fromIndexed(obj map[string]json.RawMessage) error {
	type entry struct {
		idx int
		val int
	}
	entries := make([]entry, 0, len(obj))
	for k, raw := range obj {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("bytes: non-numeric key %q", k)
		}
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("bytes: key %q: %w", k, err)
		}
		entries = append(entries, entry{idx, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	values := make([]int, len(entries))
	for i, e := range entries {
		values[i] = e.val
	}
	out, err := toBytes(values)
	if err != nil {
		return err
	}
	*b = out
	return nil
}

func toBytes(values []int) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("bytes: value %d out of range", v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

type signatureShape struct {
	Variant   *int            `json:"variant"`
	Data      json.RawMessage `json:"data"`
	Signature json.RawMessage `json:"signature"`
}

type assertionBody struct {
	JWTHeader          string `json:"jwtHeader"`
	EphemeralPublicKey struct {
		PublicKey struct {
			Key struct {
				Data Bytes `json:"data"`
			} `json:"key"`
		} `json:"publicKey"`
	} `json:"ephemeralPublicKey"`
	EphemeralSignature struct {
		Signature struct {
			Data Bytes `json:"data"`
		} `json:"signature"`
	} `json:"ephemeralSignature"`
	ExpiryDateSecs int64 `json:"expiryDateSecs"`
}

// ParseSignature decodes the wire form of a signature into its variant.
// Unrecognized shapes are rejected.
func ParseSignature(raw json.RawMessage) (Signature, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedSignature)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSignature, err)
		}
		return RawSignature{Hex: s}, nil

	case '{':
		var shape signatureShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSignature, err)
		}

		if shape.Variant != nil && *shape.Variant == AssertionVariant {
			var body assertionBody
			if err := json.Unmarshal(shape.Signature, &body); err != nil {
				return nil, fmt.Errorf("%w: assertion: %v", ErrUnsupportedSignature, err)
			}
			return AssertionSignature{
				JWTHeader:          body.JWTHeader,
				EphemeralPublicKey: body.EphemeralPublicKey.PublicKey.Key.Data,
				EphemeralSignature: body.EphemeralSignature.Signature.Data,
				ExpiryDateSecs:     body.ExpiryDateSecs,
			}, nil
		}

		if len(shape.Data) > 0 && !bytes.Equal(shape.Data, []byte("null")) {
			var data Bytes
			if err := json.Unmarshal(shape.Data, &data); err != nil {
				return nil, fmt.Errorf("%w: data: %v", ErrUnsupportedSignature, err)
			}
			return Ed25519Signature{Data: data}, nil
		}
	}

	return nil, ErrUnsupportedSignature
}
