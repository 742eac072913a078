package enrich

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/resilience"
)

type profileLookup interface {
	LookupProfile(ctx context.Context, ref string) (*model.Profile, error)
}

// pacedProfiles puts a short randomized pause in front of every profile
// fetch. The window is separate from, and smaller than, the inter-item delay.
type pacedProfiles struct {
	source profileLookup
	sleep  Sleeper
	rng    *rand.Rand
	min    time.Duration
	max    time.Duration
}

func (p *pacedProfiles) LookupProfile(ctx context.Context, ref string) (*model.Profile, error) {
	if d := resilience.Between(p.rng, p.min, p.max); d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			return nil, err
		}
	}
	return p.source.LookupProfile(ctx, ref)
}
