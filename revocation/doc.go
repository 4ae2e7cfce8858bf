// Package revocation keeps a Redis-backed blacklist of tokens that must be
// rejected before their natural expiry.
//
// Entries are keyed by the SHA-256 fingerprint of the compact token string
// and carry a TTL equal to the token's remaining lifetime, so the list never
// holds a token longer than the token itself could be used.
package revocation
