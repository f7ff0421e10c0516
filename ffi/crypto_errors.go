package ffi

import "fmt"

// CryptoErrorKind is the discriminant of CryptoError.
type CryptoErrorKind uint8

const (
	CryptoDerivationError CryptoErrorKind = iota
	CryptoKeyError
	CryptoParsingError
	CryptoSigningError
	CryptoRecoveryError
	CryptoEncryptionError
	CryptoDecryptionError
	CryptoImpossibleError
)

func (k CryptoErrorKind) String() string {
	switch k {
	case CryptoDerivationError:
		return "key derivation failed"
	case CryptoKeyError:
		return "invalid key"
	case CryptoParsingError:
		return "failed to parse signature"
	case CryptoSigningError:
		return "signing failed"
	case CryptoRecoveryError:
		return "failed to recover public key"
	case CryptoEncryptionError:
		return "encryption failed"
	case CryptoDecryptionError:
		return "decryption failed"
	case CryptoImpossibleError:
		return "impossible error"
	}
	return fmt.Sprintf("unknown crypto error kind %d", uint8(k))
}

// CryptoError is the failure type of the key generation entry point.
// KeyType names the key involved, where there is one.
type CryptoError struct {
	Kind    CryptoErrorKind
	KeyType string
}

func (e CryptoError) Error() string {
	if e.KeyType != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.KeyType)
	}
	return e.Kind.String()
}

// Is matches on the kind only.
func (e CryptoError) Is(target error) bool {
	t, ok := target.(CryptoError)
	return ok && t.Kind == e.Kind
}
