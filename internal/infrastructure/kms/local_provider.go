// Package kms provides data-encryption key material, backed by HashiCorp
// Vault or a local random source.
package kms

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/perimetra/sentinel/internal/domain/service"
)

// DataKeyBytes is the size of generated data-encryption keys (AES-256).
const DataKeyBytes = 32

// LocalProvider generates key material from the process CSPRNG. Nothing is
// persisted; callers own the material's lifecycle.
type LocalProvider struct{}

var _ service.KeyProvider = (*LocalProvider)(nil)

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) GenerateDataKey(_ context.Context, _ string) ([]byte, error) {
	material := make([]byte, DataKeyBytes)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	return material, nil
}

func (p *LocalProvider) Name() string {
	return "local"
}
