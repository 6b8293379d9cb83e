// Package auth loads Kalshi API credentials and signs requests.
//
// Every request carries three headers:
//
//	KALSHI-ACCESS-KEY        API key id
//	KALSHI-ACCESS-TIMESTAMP  request time, milliseconds since epoch
//	KALSHI-ACCESS-SIGNATURE  base64(sign(timestamp + METHOD + path))
//
// The path is the full URL path including the /trade-api/v2 prefix and
// excluding the query string. RSA keys sign with RSA-PSS (SHA-256, MGF1
// SHA-256, salt length equal to the hash); EC keys sign with ECDSA over
// SHA-256 and emit an ASN.1 DER signature.
package auth
