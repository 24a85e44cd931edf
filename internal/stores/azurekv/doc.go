// Package azurekv fetches secrets from Azure Key Vault.
//
// A Fetcher turns a canonical secret URI
// (https://<vault>.vault.azure.net/secrets/<name>[/<version>]) into a
// GetSecret call on an azsecrets client for that vault. Clients are created
// lazily and cached per vault.
//
// Authentication follows the Key Vault bearer challenge: the azsecrets
// pipeline sends an unauthenticated request, reads the tenant and resource
// from the WWW-Authenticate header, then asks the credential for a token.
// AppCredential answers that request by exchanging an application id and
// secret with the tenant named in the challenge.
package azurekv
