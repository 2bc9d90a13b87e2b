package proof

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/tonapi"
)

// Domain is the app domain every proof is bound to.
const Domain = "tonkeeper.com"

const (
	proofItemPrefix = "ton-proof-item-v2/"
	connectPrefix   = "ton-connect"
)

// BuildProofMessage assembles the TON Connect ton_proof message for
// rawAddress ("<wc>:<hex>").
func BuildProofMessage(rawAddress, domain string, timestamp int64, payload string) ([]byte, error) {
	addr, err := chain.ParseAddress(rawAddress)
	if err != nil {
		return nil, err
	}

	msg := make([]byte, 0, len(proofItemPrefix)+4+32+4+len(domain)+8+len(payload))
	msg = append(msg, proofItemPrefix...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(addr.Workchain()))
	msg = append(msg, addr.Data()...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(len(domain)))
	msg = append(msg, domain...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(timestamp))
	msg = append(msg, payload...)
	return msg, nil
}

// bufferToSign wraps the message hash the way TON Connect wallets sign it:
// 0xffff || "ton-connect" || sha256(message).
func bufferToSign(message []byte) []byte {
	h := sha256.Sum256(message)
	buf := make([]byte, 0, 2+len(connectPrefix)+len(h))
	buf = append(buf, 0xff, 0xff)
	buf = append(buf, connectPrefix...)
	return append(buf, h[:]...)
}

// UnsignedProof is a proof waiting for an external signature.
type UnsignedProof struct {
	Address      string
	Domain       string
	Timestamp    int64
	Payload      string
	StateInit    string // base64 BOC
	BufferToSign []byte
}

// NewUnsignedProof prepares a proof for rawAddress.
func NewUnsignedProof(rawAddress string, timestamp int64, payload, stateInit string) (*UnsignedProof, error) {
	msg, err := BuildProofMessage(rawAddress, Domain, timestamp, payload)
	if err != nil {
		return nil, err
	}
	return &UnsignedProof{
		Address:      rawAddress,
		Domain:       Domain,
		Timestamp:    timestamp,
		Payload:      payload,
		StateInit:    stateInit,
		BufferToSign: bufferToSign(msg),
	}, nil
}

// Digest is what the ed25519 signature covers.
func (u *UnsignedProof) Digest() []byte {
	h := sha256.Sum256(u.BufferToSign)
	return h[:]
}

// Signed attaches signature and returns the body for tonapi.
func (u *UnsignedProof) Signed(signature []byte) tonapi.SignedProof {
	return tonapi.SignedProof{
		Address: u.Address,
		Proof: tonapi.ProofData{
			Timestamp: u.Timestamp,
			Domain: tonapi.ProofDomain{
				LengthBytes: uint32(len(u.Domain)),
				Value:       u.Domain,
			},
			Signature: base64.StdEncoding.EncodeToString(signature),
			Payload:   u.Payload,
			StateInit: u.StateInit,
		},
	}
}

// SignProof signs u with priv.
func SignProof(u *UnsignedProof, priv ed25519.PrivateKey) (tonapi.SignedProof, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return tonapi.SignedProof{}, fmt.Errorf("invalid private key length %d", len(priv))
	}
	return u.Signed(ed25519.Sign(priv, u.Digest())), nil
}

// VerifyProof checks a signed proof against pub.
func VerifyProof(p tonapi.SignedProof, pub ed25519.PublicKey) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(p.Proof.Signature)
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	msg, err := BuildProofMessage(p.Address, p.Proof.Domain.Value, p.Proof.Timestamp, p.Proof.Payload)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(bufferToSign(msg))
	return ed25519.Verify(pub, digest[:], sig), nil
}
