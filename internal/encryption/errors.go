package encryption

import (
	"errors"
	"fmt"
)

// Kind tells which direction of the cipher failed
type Kind string

const (
	KindEncrypt Kind = "encrypt"
	KindDecrypt Kind = "decrypt"
)

const (
	CodeEncryptionFailed       = "ENCRYPTION_FAILED"
	CodeInvalidFormat          = "INVALID_FORMAT"
	CodeUnsupportedVersion     = "UNSUPPORTED_VERSION"
	CodeDecryptionFailed       = "DECRYPTION_FAILED"
	CodeConfigEncryptionFailed = "CONFIG_ENCRYPTION_FAILED"
	CodeConfigDecryptionFailed = "CONFIG_DECRYPTION_FAILED"
)

var ErrInvalidKey = errors.New("invalid encryption key")

// Error is returned by every encrypt and decrypt path
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func encryptError(code, msg string, err error) error {
	return &Error{Kind: KindEncrypt, Code: code, Message: msg, Err: err}
}

func decryptError(code, msg string, err error) error {
	return &Error{Kind: KindDecrypt, Code: code, Message: msg, Err: err}
}

// IsDecryptionError reports whether err came from a decrypt path.
func IsDecryptionError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindDecrypt
}
