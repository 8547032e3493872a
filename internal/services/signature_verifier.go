/**
 * @description
 * Signature Verification Service.
 * Recovers the signer address from a personal_sign signature over the exact
 * challenge message and compares it to the claimed wallet address.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto: keccak + secp256k1 recovery
 * - github.com/ethereum/go-ethereum/accounts: personal-sign message digest
 *
 * @notes
 * - Any malformed signature or recovery failure returns false, never an error.
 *   Callers treat false as an authentication failure.
 * - Wallets return V as 27/28 (legacy) or 0/1; both are accepted.
 */

package services

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type SignatureVerifier struct{}

func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{}
}

// Verify returns true only if the signature was produced over exactly `message`
// by the private key controlling `claimedAddress` (case-insensitive compare).
func (v *SignatureVerifier) Verify(claimedAddress, message, signature string) bool {
	if claimedAddress == "" || message == "" || signature == "" {
		return false
	}

	sig, err := hexutil.Decode(withHexPrefix(signature))
	if err != nil || len(sig) != 65 {
		return false
	}

	// Normalize recovery id: personal_sign wallets emit 27/28
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false
	}

	digest := accounts.TextHash([]byte(message))
	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), withHexPrefix(claimedAddress))
}

func withHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
