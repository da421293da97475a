package processor

import (
	"os"

	"taskmill/internal/model"
	"taskmill/internal/scanner"
)

// LoadSummary reports what a scan/merge cycle changed.
type LoadSummary struct {
	Added    int
	Requeued int
	Pruned   int
}

// Load scans every configured source and merges discovered specification
// files into the persisted queues. New ids append as pending; unchanged ids
// are no-ops; completed ids whose content fingerprint changed return to
// pending with timing and error fields cleared.
func (p *Processor) Load(origin model.Origin) (LoadSummary, error) {
	var summary LoadSummary

	err := p.withState(func(state *model.QueueState) error {
		p.registerSources(state)
		now := model.NowUTC()

		for _, cfgSrc := range p.cfg.Sources {
			src := state.Sources[cfgSrc.ID]

			found, err := p.scn.Scan(cfgSrc.PendingDir())
			if err != nil {
				// A source whose directory vanished is skipped, not fatal.
				p.logger.Warnf("scan_failed source=%s error=%v", cfgSrc.ID, err)
				continue
			}

			s := p.mergeSource(src, found, origin, now)
			summary.Added += s.Added
			summary.Requeued += s.Requeued
			summary.Pruned += s.Pruned

			src.Statistics.LastLoadedAt = model.StringPtr(now)
		}
		return nil
	})
	if err != nil {
		return LoadSummary{}, err
	}

	p.logger.Infof("load_done origin=%s added=%d requeued=%d pruned=%d",
		origin, summary.Added, summary.Requeued, summary.Pruned)
	return summary, nil
}

func (p *Processor) mergeSource(src *model.SourceState, found []scanner.Discovered, origin model.Origin, now string) LoadSummary {
	var summary LoadSummary

	seen := make(map[string]bool, len(found))
	for _, d := range found {
		seen[d.TaskID] = true

		existing := src.FindTask(d.TaskID)
		if existing == nil {
			src.Queue = append(src.Queue, model.TaskRecord{
				ID:                 d.TaskID,
				SpecPath:           d.Path,
				SourceID:           src.ID,
				Status:             model.StatusPending,
				Origin:             origin,
				ContentFingerprint: d.Fingerprint,
				SizeBytes:          d.SizeBytes,
				EnqueuedAt:         now,
			})
			src.Statistics.TotalQueued++
			summary.Added++
			p.logger.Infof("task_enqueued source=%s task=%s origin=%s", src.ID, d.TaskID, origin)
			continue
		}

		changed := p.cfg.Settings.FingerprintEnabled() &&
			d.Fingerprint != "" &&
			d.Fingerprint != existing.ContentFingerprint

		switch {
		case existing.Status == model.StatusCompleted && changed:
			// The spec file was edited after completion; treat it as a
			// fresh submission.
			existing.Status = model.StatusPending
			existing.Origin = model.OriginReload
			existing.ContentFingerprint = d.Fingerprint
			existing.SizeBytes = d.SizeBytes
			existing.Attempts = 0
			existing.EnqueuedAt = now
			existing.StartedAt = nil
			existing.CompletedAt = nil
			existing.Error = nil
			summary.Requeued++
			p.logger.Infof("task_requeued source=%s task=%s reason=fingerprint_changed", src.ID, d.TaskID)
		case existing.Status == model.StatusPending && changed:
			// Content refresh before first execution; nothing to reschedule.
			existing.ContentFingerprint = d.Fingerprint
			existing.SizeBytes = d.SizeBytes
		}
	}

	// Pending tasks whose file disappeared can never execute; drop them.
	kept := src.Queue[:0]
	for _, task := range src.Queue {
		if task.Status == model.StatusPending && !seen[task.ID] {
			if _, err := os.Stat(task.SpecPath); os.IsNotExist(err) {
				summary.Pruned++
				p.logger.Warnf("task_pruned source=%s task=%s reason=spec_missing", src.ID, task.ID)
				continue
			}
		}
		kept = append(kept, task)
	}
	src.Queue = kept

	return summary
}
