// Package resolver replaces Key Vault secret references in a configuration
// tree with the secrets they point at.
//
// A reference is a string leaf using the keyvault scheme:
//
//	keyvault://my-vault.vault.azure.net/secrets/db-password
//	keyvault://my-vault.vault.azure.net/secrets/db-password/6f1c0d2e
//	keyvault://username@my-vault.vault.azure.net/secrets/db-credentials
//
// The first two resolve to the secret's value (latest or pinned version).
// The third resolves to the secret's "username" tag; a tag that is not set
// on the secret resolves to the empty string.
//
// Resolution is one pass: Scan collects every reference with its path,
// the secrets are fetched concurrently, and each value is written back into
// the tree in place. The first failed fetch fails the pass. Resolve returns
// only after every fetch has finished, so the tree is not written to after
// Resolve returns.
//
//	r, err := resolver.New(resolver.WithAppCredentials(appID, appSecret))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	if err := r.Resolve(ctx, cfg); err != nil {
//	    return err
//	}
package resolver
