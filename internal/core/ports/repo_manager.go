package ports

import "github.com/vaultd-labs/vaultd/internal/core/domain"

type RepoManager interface {
	Vaults() domain.VaultRepository
	Close()
}
