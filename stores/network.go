package stores

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrEthical07/messpass/backend"
	"github.com/MrEthical07/messpass/fault"
)

// NetworkStoreName is the registry name of the network store.
const NetworkStoreName = "network"

// NetworkData is the connectivity payload.
type NetworkData struct {
	Online      bool
	LastChecked time.Time
	LastError   string
}

// Network tracks whether the backend is reachable.
type Network struct {
	*Store[NetworkData]
	api     backend.API
	limiter *rate.Limiter
}

// NewNetwork returns a network store allowing one probe per interval with
// the given burst. It starts optimistic: Online until a probe says otherwise.
func NewNetwork(api backend.API, interval time.Duration, burst int, opts Options) *Network {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Network{
		Store:   newStore(NetworkStoreName, NetworkData{Online: true}, opts),
		api:     api,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Probe pings the backend unless the probe budget is spent, in which case
// the last known answer is returned. A transport failure is an answer
// (offline), not an error.
func (n *Network) Probe(ctx context.Context) (bool, error) {
	if !n.limiter.Allow() {
		return n.Online(), nil
	}
	err := n.probe(ctx)
	return n.Online(), err
}

// Load runs an unthrottled probe. It satisfies the lifecycle loader shape.
func (n *Network) Load(ctx context.Context) error {
	return n.probe(ctx)
}

func (n *Network) probe(ctx context.Context) error {
	return n.Store.Load(ctx, func(ctx context.Context) (Reducer[NetworkData], error) {
		err := n.api.Ping(ctx)
		now := n.opts.Now()
		if err != nil {
			switch fault.KindOf(err) {
			case fault.KindNetwork, fault.KindOffline, fault.KindTimeout:
			default:
				return nil, err
			}
			return func(NetworkData) NetworkData {
				return NetworkData{Online: false, LastChecked: now, LastError: err.Error()}
			}, nil
		}
		return func(NetworkData) NetworkData {
			return NetworkData{Online: true, LastChecked: now}
		}, nil
	})
}

// SetOnline records connectivity learned elsewhere, such as from a circuit
// breaker.
func (n *Network) SetOnline(online bool) {
	_ = n.Do(context.Background(), "set_online", func(context.Context) (Reducer[NetworkData], error) {
		now := n.opts.Now()
		return func(cur NetworkData) NetworkData {
			cur.Online = online
			cur.LastChecked = now
			if online {
				cur.LastError = ""
			}
			return cur
		}, nil
	})
}

// Online reports the last known connectivity.
func (n *Network) Online() bool { return n.Snapshot().Data.Online }
