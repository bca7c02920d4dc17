package adapter

// Encryptor is the symmetric primitive used for message content at rest.
// aad is authenticated with the ciphertext and must match on Decrypt.
type Encryptor interface {
	Encrypt(plaintext, aad string) (string, error)
	Decrypt(ciphertext, aad string) (string, error)
}

// PinHasher produces salted hashes for chat PINs. Plain PINs are never stored.
type PinHasher interface {
	Hash(pin string) (string, error)
	Verify(hash, pin string) bool
}
