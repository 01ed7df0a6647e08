package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of an order signature: r ++ s ++ v.
const SignatureLength = 65

// Signer produces order signatures bound to one network's settlement
// domain. Key material never leaves the struct and is never logged.
type Signer struct {
	domain *EIP712Domain
	key    *ecdsa.PrivateKey
}

// NewSigner creates a Signer for the given settlement contract and
// chain id. The private key is hex, with or without a 0x prefix.
func NewSigner(settlementAddr string, chainID int64, privateKeyHex string) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Signer{
		domain: NewEIP712Domain(big.NewInt(chainID), common.HexToAddress(settlementAddr)),
		key:    key,
	}, nil
}

// Address returns the signer's public address, the order owner.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Domain returns the settlement domain the signer is bound to.
func (s *Signer) Domain() *EIP712Domain {
	return s.domain
}

// OrderDigest computes the digest that a signature over the order
// commits to.
func (s *Signer) OrderDigest(order *OrderParams) (common.Hash, error) {
	return SigningDigest(s.domain, order)
}

// SignOrder checks the signing preconditions, computes the order digest
// and signs it. The returned signature is 65 bytes with v in {27, 28}.
func (s *Signer) SignOrder(order *OrderParams) ([]byte, common.Hash, error) {
	if err := validateForSigning(order); err != nil {
		return nil, common.Hash{}, err
	}

	digest, err := s.OrderDigest(order)
	if err != nil {
		return nil, common.Hash{}, err
	}

	signature, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("sign order: %w", err)
	}

	// Recovery id to Ethereum convention
	signature[64] += 27

	return signature, digest, nil
}

// OrderUIDBytes assembles the 56-byte order identifier:
// digest(32) ++ owner(20) ++ validTo(4, big-endian).
func (s *Signer) OrderUIDBytes(order *OrderParams) ([]byte, error) {
	digest, err := s.OrderDigest(order)
	if err != nil {
		return nil, err
	}

	uid := make([]byte, 0, 56)
	uid = append(uid, digest.Bytes()...)
	uid = append(uid, s.Address().Bytes()...)
	uid = append(uid,
		byte(order.ValidTo>>24), byte(order.ValidTo>>16),
		byte(order.ValidTo>>8), byte(order.ValidTo))
	return uid, nil
}

// RecoverSigner returns the address that produced the signature over
// the digest.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifySignature reports whether the signature over the digest was
// produced by expected.
func VerifySignature(digest common.Hash, signature []byte, expected common.Address) bool {
	recovered, err := RecoverSigner(digest, signature)
	if err != nil {
		return false
	}
	return recovered == expected
}

func validateForSigning(order *OrderParams) error {
	if order.SellToken == order.BuyToken {
		return fmt.Errorf("sell token and buy token must differ")
	}
	if int64(order.ValidTo) <= time.Now().Unix() {
		return fmt.Errorf("order validTo %d is not in the future", order.ValidTo)
	}
	if order.SellAmount != nil && order.SellAmount.Sign() < 0 {
		return fmt.Errorf("sellAmount must not be negative")
	}
	if order.BuyAmount != nil && order.BuyAmount.Sign() < 0 {
		return fmt.Errorf("buyAmount must not be negative")
	}
	if order.FeeAmount != nil && order.FeeAmount.Sign() < 0 {
		return fmt.Errorf("feeAmount must not be negative")
	}
	return nil
}
