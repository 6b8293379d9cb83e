package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// KeyFamily identifies the signature algorithm a credential uses.
type KeyFamily int

const (
	KeyFamilyUnknown KeyFamily = iota
	KeyFamilyRSA
	KeyFamilyEC
)

func (f KeyFamily) String() string {
	switch f {
	case KeyFamilyRSA:
		return "rsa"
	case KeyFamilyEC:
		return "ec"
	default:
		return "unknown"
	}
}

// Credential is an API key id paired with its private key.
// The key family is resolved once at load time.
type Credential struct {
	KeyID  string
	Family KeyFamily

	key crypto.Signer
}

// Public returns the public half of the private key.
func (c *Credential) Public() crypto.PublicKey {
	return c.key.Public()
}

// String never includes key material.
func (c *Credential) String() string {
	return fmt.Sprintf("Credential{KeyID: %s, Family: %s}", c.KeyID, c.Family)
}

// LogValue implements slog.LogValuer.
func (c *Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key_id", c.KeyID),
		slog.String("family", c.Family.String()),
	)
}

// Load builds a credential from inline PEM text, or from the file at keyPath
// when the inline text is empty.
func Load(keyID, inlinePEM, keyPath string) (*Credential, error) {
	if strings.TrimSpace(inlinePEM) != "" {
		return LoadCredential(keyID, inlinePEM)
	}
	if keyPath == "" {
		return nil, &CredentialError{Reason: "private key is required"}
	}
	return LoadCredentialFile(keyID, keyPath)
}

// LoadCredentialFile reads a PEM private key from disk.
func LoadCredentialFile(keyID, path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CredentialError{Reason: "read key file", Err: err}
	}
	return LoadCredential(keyID, string(data))
}

// LoadCredential parses PEM text into a credential. Single-line PEM, as
// commonly found in environment variables, is repaired first.
func LoadCredential(keyID, pemText string) (*Credential, error) {
	if strings.TrimSpace(keyID) == "" {
		return nil, &CredentialError{Reason: "api key id is required"}
	}
	if strings.TrimSpace(pemText) == "" {
		return nil, &CredentialError{Reason: "private key is required"}
	}

	block := privateKeyBlock(strings.ReplaceAll(pemText, `\n`, "\n"))
	if block == nil {
		block = privateKeyBlock(NormalizePEM(pemText))
	}
	if block == nil {
		return nil, &CredentialError{Reason: "decode pem", Err: errors.New("no PEM block found")}
	}

	key, family, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, &CredentialError{Reason: "parse private key", Err: err}
	}

	return &Credential{
		KeyID:  strings.TrimSpace(keyID),
		Family: family,
		key:    key,
	}, nil
}

// privateKeyBlock returns the first block labelled "... PRIVATE KEY",
// skipping companions such as "EC PARAMETERS".
func privateKeyBlock(text string) *pem.Block {
	rest := []byte(text)
	for {
		block, next := pem.Decode(rest)
		if block == nil {
			return nil
		}
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return block
		}
		rest = next
	}
}

var pemMarkers = regexp.MustCompile(`-----BEGIN ([A-Z0-9 ]+)-----(.*?)-----END ([A-Z0-9 ]+)-----`)

// NormalizePEM rewrites PEM text into canonical form: markers on their own
// lines and the base64 body wrapped at 64 columns. Literal "\n" escapes are
// treated as newlines. When several blocks are present the private key block
// is kept. Text without markers is assumed to be a bare base64
// body and is wrapped as a PKCS#8 "PRIVATE KEY" block.
func NormalizePEM(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, `\n`, "\n"))

	label := "PRIVATE KEY"
	body := text

	flat := strings.Join(strings.Fields(text), " ")
	if ms := pemMarkers.FindAllStringSubmatch(flat, -1); ms != nil {
		m := ms[0]
		for _, cand := range ms {
			if strings.HasSuffix(cand[1], "PRIVATE KEY") {
				m = cand
				break
			}
		}
		label = m[1]
		body = m[2]
	}
	body = strings.Join(strings.Fields(body), "")

	var b strings.Builder
	b.WriteString("-----BEGIN " + label + "-----\n")
	for len(body) > 64 {
		b.WriteString(body[:64])
		b.WriteByte('\n')
		body = body[64:]
	}
	if body != "" {
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteString("-----END " + label + "-----\n")
	return b.String()
}

// parsePrivateKey accepts PKCS#8, PKCS#1 (RSA) and SEC1 (EC) encodings.
// The header label is not trusted; the DER decides.
func parsePrivateKey(der []byte) (crypto.Signer, KeyFamily, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return k, KeyFamilyRSA, nil
		case *ecdsa.PrivateKey:
			return k, KeyFamilyEC, nil
		default:
			return nil, KeyFamilyUnknown, fmt.Errorf("unsupported key type %T", key)
		}
	}
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, KeyFamilyRSA, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, KeyFamilyEC, nil
	}
	return nil, KeyFamilyUnknown, errors.New("not a PKCS#8, PKCS#1 or SEC1 private key")
}

// NewCredential wraps an already parsed private key.
func NewCredential(keyID string, key crypto.Signer) (*Credential, error) {
	if strings.TrimSpace(keyID) == "" {
		return nil, &CredentialError{Reason: "api key id is required"}
	}
	var family KeyFamily
	switch key.(type) {
	case *rsa.PrivateKey:
		family = KeyFamilyRSA
	case *ecdsa.PrivateKey:
		family = KeyFamilyEC
	default:
		return nil, &CredentialError{Reason: fmt.Sprintf("unsupported key type %T", key)}
	}
	return &Credential{KeyID: keyID, Family: family, key: key}, nil
}
