// Package crypto implements the primitives required by spec §4.1: a
// 256-bit digest, a post-quantum signature scheme, authenticated
// symmetric encryption for off-chain payloads, and the base64/SPKI
// string codecs the rest of the module uses to move keys in and out of
// storage.
//
// The reference implementation pins one cipher suite (SHA3-256 +
// ML-DSA-87) rather than mixing legacy RSA/secp256r1, per the open
// question in spec §9: "implementations SHOULD commit to one cipher
// suite and fail fast on foreign keys."
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"sync"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
)

// SchemeName is the signature suite named by spec §4.1. Any
// 256-bit-security scheme with deterministic X.509/PKCS8 encodings
// could be substituted here without touching callers.
const SchemeName = "ML-DSA-87"

// GenesisSigner is the sentinel signer string for block 0.
const GenesisSigner = "GENESIS"

// GenesisSignature is the sentinel signature string for block 0.
const GenesisSignature = "GENESIS"

// GenesisPreviousHash is the sentinel previous_hash for block 0.
const GenesisPreviousHash = "0"

var (
	schemeOnce sync.Once
	scheme     sign.Scheme

	// rng is the process-wide, thread-safe random source. crypto/rand's
	// Reader is already safe for concurrent use; this indirection exists
	// so tests can substitute a deterministic source.
	rngMu sync.Mutex
	rng   io.Reader = cryptorand.Reader
)

func activeScheme() sign.Scheme {
	schemeOnce.Do(func() {
		scheme = schemes.ByName(SchemeName)
		if scheme == nil {
			panic("crypto: unknown signature scheme " + SchemeName)
		}
	})
	return scheme
}

// SetRandForTesting swaps the process-wide RNG. Production code must
// never call this; it exists for deterministic unit tests only.
func SetRandForTesting(r io.Reader) func() {
	rngMu.Lock()
	prev := rng
	rng = r
	rngMu.Unlock()
	return func() {
		rngMu.Lock()
		rng = prev
		rngMu.Unlock()
	}
}

func reader() io.Reader {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng
}

// Hash computes the reference 256-bit digest over data and returns it
// hex-encoded, matching the `hash` field format used throughout the
// store.
func Hash(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// KeyPair holds a generated signing key pair in their native circl
// representations; use PublicKeyToString/PrivateKey accessors to move
// them to/from storage.
type KeyPair struct {
	Public  sign.PublicKey
	Private sign.PrivateKey
}

// GenerateSigningKeyPair implements spec §4.1's generate_signing_keypair.
func GenerateSigningKeyPair() (*KeyPair, error) {
	pk, sk, err := activeScheme().GenerateKey()
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "generate signing keypair")
	}
	return &KeyPair{Public: pk, Private: sk}, nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// PublicKeyToString base64-encodes the marshaled public key, the
// sentinel-free counterpart of the genesis "GENESIS" marker.
func PublicKeyToString(pk sign.PublicKey) (string, error) {
	m, ok := pk.(binaryMarshaler)
	if !ok {
		return "", chainerr.New(chainerr.CryptoError, "public key does not support binary marshaling")
	}
	raw, err := m.MarshalBinary()
	if err != nil {
		return "", chainerr.Wrap(chainerr.CryptoError, err, "marshal public key")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// StringToPublicKey inverts PublicKeyToString. The literal sentinel
// "GENESIS" is rejected here; callers must special-case block 0
// themselves, since a sentinel is not a real key.
func StringToPublicKey(s string) (sign.PublicKey, error) {
	if s == GenesisSigner {
		return nil, chainerr.New(chainerr.CryptoError, "GENESIS is a sentinel, not a decodable public key")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "decode public key base64")
	}
	pk, err := activeScheme().UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "unmarshal public key")
	}
	return pk, nil
}

// PrivateKeyToString mirrors PublicKeyToString for private keys,
// primarily used by the CLI's key-export commands and tests.
func PrivateKeyToString(sk sign.PrivateKey) (string, error) {
	m, ok := sk.(binaryMarshaler)
	if !ok {
		return "", chainerr.New(chainerr.CryptoError, "private key does not support binary marshaling")
	}
	raw, err := m.MarshalBinary()
	if err != nil {
		return "", chainerr.Wrap(chainerr.CryptoError, err, "marshal private key")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// StringToPrivateKey inverts PrivateKeyToString.
func StringToPrivateKey(s string) (sign.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "decode private key base64")
	}
	sk, err := activeScheme().UnmarshalBinaryPrivateKey(raw)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "unmarshal private key")
	}
	return sk, nil
}

// Sign signs bytes with sk and returns the raw signature. The
// signature is computed with the scheme's default (randomized-or-not is
// scheme-defined) context, matching spec §4.1's sign(sk, bytes) -> sig.
func Sign(sk sign.PrivateKey, data []byte) ([]byte, error) {
	sig := activeScheme().Sign(sk, data, nil)
	if sig == nil {
		return nil, chainerr.New(chainerr.CryptoError, "signature scheme returned no signature")
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature over data under pk.
func Verify(pk sign.PublicKey, data, sig []byte) bool {
	return activeScheme().Verify(pk, data, sig, nil)
}

// SignBase64 and VerifyBase64 are the string-oriented counterparts used
// by the block store, where signatures are persisted base64-encoded.
func SignBase64(sk sign.PrivateKey, data []byte) (string, error) {
	sig, err := Sign(sk, data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func VerifyBase64(pk sign.PublicKey, data []byte, sigB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, chainerr.Wrap(chainerr.CryptoError, err, "decode signature base64")
	}
	return Verify(pk, data, sig), nil
}

// gcmNonceSize and gcmKeySize follow spec §4.1: a 96-bit IV and a
// 256-bit derived key (128-bit tag is AES-GCM's standard tag length).
const (
	gcmNonceSize  = 12
	gcmKeySize    = 32
	gcmSaltSize   = 16
	pbkdf2Rounds  = 200_000
)

// deriveKey turns a password into a 256-bit AES key via PBKDF2-HMAC-SHA3-256,
// per spec §4.1's "derived from password via the chosen 256-bit digest or a
// KDF".
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Rounds, gcmKeySize, sha3.New256)
}

// EncryptGCM implements spec §4.1's encrypt_gcm: returns
// base64(salt‖iv‖ct‖tag).
func EncryptGCM(plaintext []byte, password string) (string, error) {
	salt := make([]byte, gcmSaltSize)
	if _, err := io.ReadFull(reader(), salt); err != nil {
		return "", chainerr.Wrap(chainerr.CryptoError, err, "generate salt")
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", chainerr.Wrap(chainerr.CryptoError, err, "init aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", chainerr.Wrap(chainerr.CryptoError, err, "init gcm")
	}

	iv := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(reader(), iv); err != nil {
		return "", chainerr.Wrap(chainerr.CryptoError, err, "generate iv")
	}

	ct := gcm.Seal(nil, iv, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(iv)+len(ct))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// ErrDecryptionFailed is returned by DecryptGCM specifically on
// authentication-tag mismatch, per spec §4.1's "decryption failure
// (auth-tag mismatch) is reported as a distinct error kind".
var ErrDecryptionFailed = errors.New("gcm authentication failed")

// DecryptGCM inverts EncryptGCM.
func DecryptGCM(encoded string, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "decode ciphertext base64")
	}
	if len(raw) < gcmSaltSize+gcmNonceSize {
		return nil, chainerr.New(chainerr.CryptoError, "ciphertext too short")
	}
	salt := raw[:gcmSaltSize]
	iv := raw[gcmSaltSize : gcmSaltSize+gcmNonceSize]
	ct := raw[gcmSaltSize+gcmNonceSize:]

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "init aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, err, "init gcm")
	}

	pt, err := gcm.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CryptoError, ErrDecryptionFailed, "gcm open")
	}
	return pt, nil
}
