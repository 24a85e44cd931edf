package commands

import (
	"strings"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/awssm"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/azurekv"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/gcpsm"
)

// storeForHost names the store a reference host is served by, and whether
// that store is enabled in def. Unknown hosts go to Key Vault.
func storeForHost(host string, def *config.Definition) (string, bool) {
	host = strings.ToLower(host)
	if def == nil {
		def = &config.Definition{}
	}

	if hasSuffix(host, gcpsm.HostSuffix) {
		return gcpsm.StoreName, def.GCP.Enabled
	}
	for _, suffix := range awssm.HostSuffixes {
		if !hasSuffix(host, suffix) {
			continue
		}
		if strings.HasPrefix(host, awssm.ParameterStoreService+".") {
			return awssm.ParameterStore, def.AWS.Enabled
		}
		return awssm.SecretsManagerStore, def.AWS.Enabled
	}
	return azurekv.StoreName, true
}

func hasSuffix(host, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}
