package application

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
)

// restoreClaimWatchers re-arms a claim notice for every unlocking vault
// found at startup.
func (s *service) restoreClaimWatchers() error {
	vaults, err := s.repoManager.Vaults().GetUnlockingVaults(
		context.Background(), math.MaxInt64,
	)
	if err != nil {
		return err
	}
	for _, v := range vaults {
		s.scheduleClaimNotice(v)
	}
	if len(vaults) > 0 {
		log.Debugf("restored %d claim watcher(s)", len(vaults))
	}
	return nil
}

func (s *service) scheduleClaimNotice(v domain.VaultUtxo) {
	at := v.Record.Status.UnlockDeadline
	if at <= s.scheduler.AddNow(0) {
		at = s.scheduler.AddNow(1)
	}
	if err := s.scheduler.ScheduleTaskOnce(at, func() {
		log.WithField("vault", v.Ref.String()).Info(
			"unlock deadline reached, vault is claimable",
		)
	}); err != nil {
		log.WithError(err).Warnf("failed to schedule claim notice for vault %s", v.Ref)
	}
}
