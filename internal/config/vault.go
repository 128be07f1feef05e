package config

import (
	"fmt"
	"os"
	"strings"

	"resumeboost/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in Vault (KVv2 paths).
type VaultSecrets struct {
	// GeminiKey secret is expected to carry an "apiKey" field.
	GeminiKey string `mapstructure:"geminiKey"`
	// StripeKeys secret is expected to carry "secretKey" and
	// "webhookSecret" fields.
	StripeKeys string `mapstructure:"stripeKeys"`
	// JWTSecret secret is expected to carry a "secret" field.
	JWTSecret string `mapstructure:"jwtSecret"`
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration. Returns
// (nil, nil) when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled")
		}
		return nil, nil
	}

	client, err := createVaultAPIClient(config, logger)
	if err != nil {
		return nil, err
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	if err := testVaultConnection(client, config.Address, logger); err != nil {
		return nil, err
	}

	return &VaultClient{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// createVaultAPIClient creates and configures the Vault API client
func createVaultAPIClient(config VaultConfig, logger *errors.Logger) (*api.Client, error) {
	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		if logger != nil {
			logger.LogError(err, "Failed to create Vault client")
		}
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	return client, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			if logger != nil {
				logger.LogError(err, "Failed to read Vault token file", "file", config.TokenFile)
			}
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}

	return token, nil
}

// testVaultConnection tests the connection to Vault
func testVaultConnection(client *api.Client, address string, logger *errors.Logger) error {
	health, err := client.Sys().Health()
	if err != nil {
		if logger != nil {
			logger.LogError(err, "Failed to connect to Vault", "address", address)
		}
		return fmt.Errorf("failed to connect to vault: %w", err)
	}

	if logger != nil {
		logger.Info("Successfully connected to Vault",
			"address", address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return nil
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (map[string]any, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		if vc.logger != nil {
			vc.logger.LogError(err, "Failed to read secret from Vault", "path", path)
		}
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	return data, nil
}

// ApplySecrets overlays Vault-sourced secrets onto the configuration.
// Vault values win over file and environment values.
func (vc *VaultClient) ApplySecrets(cfg *Config) error {
	if vc == nil {
		return nil
	}

	if path := vc.config.Secrets.GeminiKey; path != "" {
		data, err := vc.GetSecretV2(path)
		if err != nil {
			return err
		}
		if key, ok := data["apiKey"].(string); ok && key != "" {
			cfg.AI.APIKey = key
		}
	}

	if path := vc.config.Secrets.StripeKeys; path != "" {
		data, err := vc.GetSecretV2(path)
		if err != nil {
			return err
		}
		if key, ok := data["secretKey"].(string); ok && key != "" {
			cfg.Stripe.SecretKey = key
		}
		if secret, ok := data["webhookSecret"].(string); ok && secret != "" {
			cfg.Stripe.WebhookSecret = secret
		}
	}

	if path := vc.config.Secrets.JWTSecret; path != "" {
		data, err := vc.GetSecretV2(path)
		if err != nil {
			return err
		}
		if secret, ok := data["secret"].(string); ok && secret != "" {
			cfg.Auth.JWTSecret = secret
		}
	}

	if vc.logger != nil {
		vc.logger.Info("Applied secrets from Vault")
	}

	return nil
}
