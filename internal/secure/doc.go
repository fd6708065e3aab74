// Package secure keeps derived key material out of ordinary Go memory.
//
// Vault keys are moved into a memguard enclave right after derivation and are
// only decrypted for the duration of a single encrypt or decrypt call:
//
//	buf, err := secure.NewSecureBuffer(key)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	err = buf.With(func(plaintext []byte) error {
//	    return useKey(plaintext)
//	})
//
// Call memguard.Purge() at process exit (the CLI does) to wipe every enclave.
//
// This protects against core dumps and swap. It does not protect against an
// attacker with access to the running process.
package secure
