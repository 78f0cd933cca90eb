package provider

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/florianilch/signet/internal/auth"
)

// flightKey is the single key acquisitions are deduplicated under; a
// provider owns exactly one credential.
const flightKey = "credential"

type flightKind int

const (
	flightSilent flightKind = iota
	flightInteractive
)

func (k flightKind) String() string {
	if k == flightInteractive {
		return "interactive"
	}
	return "silent"
}

// flight is the bookkeeping of one in-progress credential acquisition. The
// acquisition itself runs as a singleflight call; p.inflight points at the
// flight whose call is registered under flightKey. Fields other than
// acquire are guarded by p.mu.
type flight struct {
	kind    flightKind
	gen     uint64
	cancel  context.CancelFunc
	waiters int
	acquire func() (any, error)
}

// joinLocked registers a waiter for f and returns the channel its outcome is
// delivered on. The first join starts the acquisition. Requires p.mu and
// p.inflight == f, which guarantees flightKey still maps to f's call.
func (p *Provider) joinLocked(f *flight) <-chan singleflight.Result {
	f.waiters++
	return p.group.DoChan(flightKey, f.acquire)
}

// await blocks until f completes or ctx ends. A waiter leaving early does
// not change the outcome for the others. An interactive acquisition is
// cancelled once all of its waiters have left, since nobody is left to
// complete it.
func (p *Provider) await(ctx context.Context, f *flight, ch <-chan singleflight.Result) (*auth.Credential, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*auth.Credential), nil
	case <-ctx.Done():
		p.leave(f)
		return nil, ctx.Err()
	}
}

func (p *Provider) leave(f *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f.waiters--
	if f.waiters == 0 && f.kind == flightInteractive && p.inflight == f {
		f.cancel()
	}
}
