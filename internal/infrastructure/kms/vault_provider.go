package kms

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/logger"
)

// VaultProvider generates key material locally and escrows it in Vault's KV
// store under the configured mount, so rotated keys can be recovered.
type VaultProvider struct {
	client *vault.Client
	config config.VaultConfig
	logger logger.Logger
}

var _ service.KeyProvider = (*VaultProvider)(nil)

// NewVaultProvider creates a provider using the given Vault client.
func NewVaultProvider(cfg config.VaultConfig, client *vault.Client, log logger.Logger) *VaultProvider {
	return &VaultProvider{
		client: client,
		config: cfg,
		logger: log.WithComponent("vault_key_provider"),
	}
}

// NewVaultClient builds a Vault API client from config.
func NewVaultClient(cfg config.VaultConfig) (*vault.Client, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	return client, nil
}

// GenerateDataKey creates 32 bytes of random key material and writes it to
// Vault under the alias before returning it.
func (p *VaultProvider) GenerateDataKey(ctx context.Context, alias string) ([]byte, error) {
	material := make([]byte, DataKeyBytes)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	path := fmt.Sprintf("%s/data/sentinel/keys/%s", p.config.MountPath, alias)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"material": base64.StdEncoding.EncodeToString(material),
		},
	}

	if _, err := p.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		p.logger.Error(ctx, "failed to escrow key material in vault", err,
			logger.String("alias", alias))
		return nil, fmt.Errorf("failed to write key to vault: %w", err)
	}

	return material, nil
}

// RecoverDataKey reads previously escrowed key material back from Vault.
func (p *VaultProvider) RecoverDataKey(ctx context.Context, alias string) ([]byte, error) {
	path := fmt.Sprintf("%s/data/sentinel/keys/%s", p.config.MountPath, alias)

	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("could not read key from vault: %w", err)
	}
	if secret == nil || secret.Data["data"] == nil {
		return nil, fmt.Errorf("key not found in vault for alias %s", alias)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format in vault")
	}
	encoded, ok := data["material"].(string)
	if !ok {
		return nil, fmt.Errorf("material not found in vault secret")
	}

	material, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key material: %w", err)
	}
	return material, nil
}

func (p *VaultProvider) Name() string {
	return "vault"
}
