package engine

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/model"
)

// checkRegistrarUniqueness enforces spec property 6: at most one registrar
// may be configured for a given band across the known network. It scans
// the graph's current snapshot for any other device already advertising
// itself as a Multi-AP controller with BSSes on band, and rejects our own
// registrar activation for that band if one is found.
//
// This is necessarily a best-effort, eventually-consistent check: it sees
// only what topology/operational-BSS exchanges have already populated into
// the graph, not a network-wide election.
func (l *Loop) checkRegistrarUniqueness(band model.Band) error {
	if l.registrar == nil {
		return nil
	}
	if _, ours := l.registrar.ByBand[band]; !ours {
		return nil
	}
	for _, dev := range l.graph.All() {
		if dev.ALMAC == l.localALMAC {
			continue
		}
		if !dev.IsMultiAPController {
			continue
		}
		for _, radio := range dev.Radios {
			for _, b := range radio.Bands {
				if b == band {
					return errs.Policy("engine.checkRegistrarUniqueness",
						fmt.Errorf("band %s already has a registrar at %s", band, dev.ALMAC))
				}
			}
		}
	}
	return nil
}
