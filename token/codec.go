package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MaxTokenLength bounds the accepted wire size so oversized input is rejected
// before any decoding work.
const MaxTokenLength = 8 << 10

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var b64 = base64.RawURLEncoding.Strict()

// Segments is a token split into its three pattern-checked parts.
type Segments struct {
	Header    string
	Payload   string
	Signature string
}

// SigningInput returns Header "." Payload, the bytes covered by the signature.
func (s Segments) SigningInput() string {
	return s.Header + "." + s.Payload
}

// Decoded is the result of [Decode].
type Decoded struct {
	Header       Header
	Claims       Claims
	Signature    []byte
	SigningInput string
}

// Encode serializes header and claims to canonical JSON, base64url-encodes
// both without padding and joins them with ".". The result is the signing
// input; append "." and the signature to obtain a token.
func Encode(header Header, claims Claims) (string, error) {
	h, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	p, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return b64.EncodeToString(h) + "." + b64.EncodeToString(p), nil
}

// Split checks the wire shape: exactly three non-empty segments, each
// matching ^[A-Za-z0-9_-]+$. It decodes nothing.
func Split(token string) (Segments, error) {
	if token == "" || len(token) > MaxTokenLength {
		return Segments{}, ErrMalformed
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Segments{}, ErrMalformed
	}
	for _, part := range parts {
		if !segmentPattern.MatchString(part) {
			return Segments{}, ErrMalformed
		}
	}
	return Segments{Header: parts[0], Payload: parts[1], Signature: parts[2]}, nil
}

// Decode splits and decodes a token without checking its signature.
//
// It fails with [ErrMalformed] when the wire shape is wrong or the header and
// claims violate the format, and with [ErrInvalidEncoding] when base64url or
// JSON decoding fails.
func Decode(token string) (*Decoded, error) {
	seg, err := Split(token)
	if err != nil {
		return nil, err
	}
	sig, err := b64.DecodeString(seg.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidEncoding, err)
	}
	header, claims, err := decodeSegments(seg)
	if err != nil {
		return nil, err
	}
	return &Decoded{
		Header:       header,
		Claims:       claims,
		Signature:    sig,
		SigningInput: seg.SigningInput(),
	}, nil
}

func decodeSegments(seg Segments) (Header, Claims, error) {
	var header Header
	if err := decodeJSON(seg.Header, &header); err != nil {
		return Header{}, Claims{}, err
	}
	if header.Alg != Algorithm || header.Typ != HeaderType {
		return Header{}, Claims{}, ErrMalformed
	}

	var wire wireClaims
	if err := decodeJSON(seg.Payload, &wire); err != nil {
		return Header{}, Claims{}, err
	}
	claims, err := wire.claims()
	if err != nil {
		return Header{}, Claims{}, err
	}
	return header, claims, nil
}

func decodeJSON(segment string, v any) error {
	raw, err := b64.DecodeString(segment)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return nil
}
