// Package token provides token generation and hashing utilities.
//
// Generate produces a Base64 RawURL encoded random token from crypto/rand.
// Hash and Verify support storing only a token's SHA-256 hash and checking
// candidates against it in constant time.
package token
