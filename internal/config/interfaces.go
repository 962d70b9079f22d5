package config

import "context"

// SecretProvider resolves secret values by key: SSM parameter paths in
// deployed environments, environment variable names locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every resolved key.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider returns the SSM provider for deployed environments and
// the environment-variable provider for APP_ENV=local.
func NewSecretProvider(appEnv, region, endpointURL string) SecretProvider {
	if appEnv == "" || appEnv == localEnv {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region, endpointURL)
}
