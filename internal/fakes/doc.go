// Package fakes provides test doubles for the secret store clients.
//
// Fakes are written by hand rather than generated so tests control exactly
// what each SDK call returns.
//
//	kv := fakes.NewFakeKeyVaultClient()
//	kv.AddSecretWithTags("db-password", "s3cret", map[string]string{"user": "app"})
//	f := azurekv.NewFetcher(nil, azurekv.WithClientFactory(
//	    func(string) (azurekv.ClientAPI, error) { return kv, nil }))
package fakes
