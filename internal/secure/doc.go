// Package secure keeps credential material encrypted in memory.
//
// The application secret used for the Key Vault credential exchange is held
// in a SecureBuffer between token requests. The buffer wraps a memguard
// enclave, so the plaintext only exists inside a locked buffer for the
// duration of a Use callback:
//
//	buf := secure.FromString(appSecret)
//	defer buf.Destroy()
//
//	err := buf.Use(func(secret string) error {
//	    cred, err = azidentity.NewClientSecretCredential(tenant, appID, secret, nil)
//	    return err
//	})
//
// Call memguard.Purge at process exit to wipe every enclave key.
package secure
