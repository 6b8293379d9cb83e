package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names sent with every authenticated request.
const (
	HeaderKey       = "KALSHI-ACCESS-KEY"
	HeaderTimestamp = "KALSHI-ACCESS-TIMESTAMP"
	HeaderSignature = "KALSHI-ACCESS-SIGNATURE"
)

// Headers are the authentication headers for one request.
type Headers struct {
	KeyID     string
	Timestamp string
	Signature string
}

// Apply sets the headers on an outgoing request.
func (h Headers) Apply(hdr http.Header) {
	hdr.Set(HeaderKey, h.KeyID)
	hdr.Set(HeaderTimestamp, h.Timestamp)
	hdr.Set(HeaderSignature, h.Signature)
}

// Signer produces request signatures for a credential.
type Signer struct {
	cred *Credential
	now  func() time.Time
}

// NewSigner creates a Signer for cred.
func NewSigner(cred *Credential) *Signer {
	return &Signer{cred: cred, now: time.Now}
}

// KeyID returns the API key id the signer authenticates as.
func (s *Signer) KeyID() string {
	return s.cred.KeyID
}

// SignRequest signs method and path stamped with the current time.
// Signatures are never reused across requests.
func (s *Signer) SignRequest(method, path string) (Headers, error) {
	return s.Sign(method, path, s.now())
}

// Sign signs method and path at the given time.
func (s *Signer) Sign(method, path string, ts time.Time) (Headers, error) {
	tsMs := strconv.FormatInt(ts.UnixMilli(), 10)
	hashed := sha256.Sum256([]byte(Message(tsMs, method, path)))

	var (
		sig []byte
		err error
	)
	switch s.cred.Family {
	case KeyFamilyRSA:
		key, ok := s.cred.key.(*rsa.PrivateKey)
		if !ok {
			return Headers{}, &SigningError{Err: errors.New("credential key is not RSA")}
		}
		sig, err = rsa.SignPSS(rand.Reader, key, crypto.SHA256, hashed[:],
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	case KeyFamilyEC:
		key, ok := s.cred.key.(*ecdsa.PrivateKey)
		if !ok {
			return Headers{}, &SigningError{Err: errors.New("credential key is not EC")}
		}
		sig, err = ecdsa.SignASN1(rand.Reader, key, hashed[:])
	default:
		return Headers{}, &SigningError{Err: fmt.Errorf("unsupported key family %s", s.cred.Family)}
	}
	if err != nil {
		return Headers{}, &SigningError{Err: err}
	}

	return Headers{
		KeyID:     s.cred.KeyID,
		Timestamp: tsMs,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Message builds the string that is signed: timestamp + METHOD + path,
// with any query string removed from path.
func Message(timestampMs, method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return timestampMs + strings.ToUpper(method) + path
}

// Verify checks a signature produced by Sign against the public key.
func Verify(pub crypto.PublicKey, method, path string, h Headers) error {
	sig, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	hashed := sha256.Sum256([]byte(Message(h.Timestamp, method, path)))

	switch k := pub.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPSS(k, crypto.SHA256, hashed[:], sig,
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, hashed[:], sig) {
			return errors.New("ecdsa: verification error")
		}
		return nil
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
}
