package encryption

import "fmt"

// SensitiveFields lists configuration keys that are always stored encrypted.
var SensitiveFields = []string{
	"botToken",
	"webhookUrl",
	"apiKey",
	"accessToken",
	"refreshToken",
	"clientSecret",
}

// EncryptFields returns a copy of cfg with every non-empty sensitive string encrypted.
func (c *Cipher) EncryptFields(cfg map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}

	for _, field := range SensitiveFields {
		s, ok := out[field].(string)
		if !ok || s == "" {
			continue
		}
		enc, err := c.Encrypt(s)
		if err != nil {
			return nil, encryptError(CodeConfigEncryptionFailed, "failed to encrypt configuration", err)
		}
		out[field] = enc
	}
	return out, nil
}

// DecryptFields reverses EncryptFields. A field that does not decrypt fails the whole call.
func (c *Cipher) DecryptFields(cfg map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}

	for _, field := range SensitiveFields {
		s, ok := out[field].(string)
		if !ok || s == "" {
			continue
		}
		dec, err := c.Decrypt(s)
		if err != nil {
			return nil, decryptError(CodeConfigDecryptionFailed,
				fmt.Sprintf("failed to decrypt configuration field %q", field), err)
		}
		out[field] = dec
	}
	return out, nil
}
