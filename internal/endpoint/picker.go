// Package endpoint chooses which of a chain's public RPC URLs the local
// wallet talks to.
package endpoint

import (
	"errors"
	"time"
)

// ErrNoHealthyEndpoint is returned when every candidate failed its health check.
var ErrNoHealthyEndpoint = errors.New("no healthy rpc endpoint")

// Strategy decides how a winner is chosen among measured endpoints.
type Strategy string

const (
	// Fastest prefers low latency among nodes near the chain head.
	Fastest Strategy = "fastest"
	// Failover takes the first healthy endpoint in configured order.
	Failover Strategy = "failover"

	// Nodes further than this many blocks behind the best are skipped.
	staleBlocks = 3
)

// Endpoint is one measured RPC URL.
type Endpoint struct {
	URL     string
	Latency time.Duration
	Block   uint64
	Err     error
}

// Healthy reports whether the head-block request succeeded.
func (e Endpoint) Healthy() bool { return e.Err == nil }

// Pick returns the winning endpoint under s.
func Pick(s Strategy, endpoints []Endpoint) (Endpoint, error) {
	if s == Failover {
		for _, e := range endpoints {
			if e.Healthy() {
				return e, nil
			}
		}
		return Endpoint{}, ErrNoHealthyEndpoint
	}

	var best uint64
	for _, e := range endpoints {
		if e.Healthy() && e.Block > best {
			best = e.Block
		}
	}

	var (
		winner Endpoint
		top    float64
		found  bool
	)
	for _, e := range endpoints {
		if !e.Healthy() || best-e.Block > staleBlocks {
			continue
		}
		if s := score(e, best); !found || s > top {
			winner, top, found = e, s, true
		}
	}
	if !found {
		return Endpoint{}, ErrNoHealthyEndpoint
	}
	return winner, nil
}

// score favours low latency, minus a point per block behind the head.
func score(e Endpoint, best uint64) float64 {
	var s float64
	if ms := e.Latency.Milliseconds(); ms > 0 {
		s += 1000 / float64(ms)
	} else {
		s += 1000
	}
	return s - float64(best-e.Block)
}
