package auth

// CredentialError reports a missing or unusable API credential.
// It never carries key material.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return "credential: " + e.Reason + ": " + e.Err.Error()
	}
	return "credential: " + e.Reason
}

func (e *CredentialError) Unwrap() error { return e.Err }

// SigningError reports a failure to produce a request signature.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return "sign request: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error { return e.Err }
