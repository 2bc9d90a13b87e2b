package keystone

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Signature is the device reply to a SignRequest.
type Signature struct {
	RequestID uuid.UUID
	Signature string // hex
	Origin    string
}

type cborSignature struct {
	RequestID *cbor.RawTag `cbor:"1,keyasint,omitempty"`
	Signature []byte       `cbor:"2,keyasint"`
	Origin    string       `cbor:"3,keyasint,omitempty"`
}

// ParseSignature decodes a ton-signature UR. Any other UR type yields ErrInvalidScanType.
func ParseSignature(ur *UR) (*Signature, error) {
	if ur == nil || ur.Type != TypeSignature {
		return nil, ErrInvalidScanType
	}

	var in cborSignature
	if err := cbor.Unmarshal(ur.CBOR, &in); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(in.Signature) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrInvalidUR)
	}

	sig := &Signature{Signature: hex.EncodeToString(in.Signature), Origin: in.Origin}
	if in.RequestID != nil {
		id, err := decodeUUIDTag(in.RequestID)
		if err != nil {
			return nil, err
		}
		sig.RequestID = id
	}
	return sig, nil
}

// NewSignatureUR builds the reply a device would show. Used by emulators and tests.
func NewSignatureUR(requestID uuid.UUID, signature []byte, origin string) (*UR, error) {
	out := cborSignature{Signature: signature, Origin: origin}
	if requestID != uuid.Nil {
		tag, err := rawTag(tagUUID, requestID[:])
		if err != nil {
			return nil, err
		}
		out.RequestID = tag
	}
	payload, err := cbor.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}
	return NewUR(TypeSignature, payload)
}
