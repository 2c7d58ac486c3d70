package endpoint

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"
)

// MeasureTimeout bounds a single endpoint measurement.
const MeasureTimeout = 5 * time.Second

// Dialer opens an RPC connection.
type Dialer func(ctx context.Context, url string) (*rpc.Client, error)

// Measure dials every url in parallel, asks for the head block and measures
// the round trip. Results keep the order of urls.
func Measure(ctx context.Context, dial Dialer, urls []string) []Endpoint {
	out := make([]Endpoint, len(urls))
	var g errgroup.Group
	for i, url := range urls {
		g.Go(func() error {
			out[i] = measure(ctx, dial, url)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func measure(ctx context.Context, dial Dialer, url string) Endpoint {
	ctx, cancel := context.WithTimeout(ctx, MeasureTimeout)
	defer cancel()

	e := Endpoint{URL: url}
	start := time.Now()
	c, err := dial(ctx, url)
	if err != nil {
		e.Err = err
		return e
	}
	defer c.Close()

	var head hexutil.Uint64
	if err := c.CallContext(ctx, &head, "eth_blockNumber"); err != nil {
		e.Err = err
		return e
	}
	e.Latency = time.Since(start)
	e.Block = uint64(head)
	return e
}

// Select measures urls and returns the winner under s. A single url is
// returned without probing.
func Select(ctx context.Context, dial Dialer, urls []string, s Strategy) (string, error) {
	switch len(urls) {
	case 0:
		return "", ErrNoHealthyEndpoint
	case 1:
		return urls[0], nil
	}
	winner, err := Pick(s, Measure(ctx, dial, urls))
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
