// Package followclient implements the leader-following RPC client
// (spec §4.6): every external component (router, REST bridge, CLI)
// uses one of these to reach whichever replica in a Raft group is
// currently leader, without needing to track leadership itself.
//
// Grounded on original_source/ea/client/discovery_sender.h's
// cached-leader/random-candidate retry loop, adapted from a
// brpc::Channel per call to a reusable connectrpc.com/connect
// transport, and from a fixed sleep between attempts to a
// golang.org/x/time/rate limiter.
package followclient

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/util/twinbuf"
)

// defaultRetryTimes matches the original's kRetryTimes.
const defaultRetryTimes = 5

// Config configures a Client's connection behavior.
type Config struct {
	// Nodes is the full set of candidate server addresses ("host:port").
	Nodes []string

	// ConnectTimeout and RequestTimeout are added together into a single
	// deadline for each attempt; no separate dial timeout is applied.
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// RetryTimes is the uniform retry-count budget shared by transport
	// failures, HAVE_NOT_INIT, and NOT_LEADER redirects alike. Defaults
	// to 5 if unset.
	RetryTimes int

	// IntervalMS is the backoff interval between attempts (not charged
	// before the first). Defaults to 1000ms if unset.
	IntervalMS int
}

// Client caches the last known leader of one Raft group and follows it
// across elections, clearing the cache on any failure that suggests
// it's stale. The leader cache is read on every Send call and written
// rarely (only on redirect/failure), so it's backed by a twinbuf.Buffer
// rather than a plain mutex-guarded field.
type Client struct {
	leader *twinbuf.Buffer[string]

	nodes     []string
	transport Transport
	cfg       Config
	limiter   *rate.Limiter
	rng       func() uint64
	genLogID  func() uint64
}

// New constructs a Client. transport is normally NewConnectTransport();
// tests substitute a fake to avoid real network I/O.
func New(cfg Config, transport Transport) *Client {
	if cfg.RetryTimes <= 0 {
		cfg.RetryTimes = defaultRetryTimes
	}
	intervalMS := cfg.IntervalMS
	if intervalMS <= 0 {
		intervalMS = 1000
	}
	return &Client{
		leader:    twinbuf.New(""),
		nodes:     cfg.Nodes,
		transport: transport,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(time.Duration(intervalMS)*time.Millisecond), 1),
		rng:       func() uint64 { return rand.Uint64() },
		genLogID:  newLogID,
	}
}

// newLogID derives a log-id from a freshly minted ULID's entropy bits
// (spec §4.6 "every RPC carries a log-id"): bytes [8:16] fall entirely
// within the ULID's 80-bit random entropy segment, never its 48-bit
// timestamp prefix, so the result doesn't collapse toward sequential
// values the way using the timestamp bytes would.
func newLogID() uint64 {
	id := ulid.Make()
	return binary.BigEndian.Uint64(id[8:16])
}

func (c *Client) cachedLeader() string {
	return c.leader.Load()
}

func (c *Client) setLeader(addr string) {
	c.leader.Modify(func(s *string) { *s = addr })
}

func (c *Client) randomNode() string {
	if len(c.nodes) == 0 {
		return ""
	}
	return c.nodes[int(c.rng()%uint64(len(c.nodes)))]
}

// Send issues method against the group, following leader redirects and
// retrying transport failures, up to cfg.RetryTimes attempts total
// (spec §4.6 "uniform retry-count budget").
func (c *Client) Send(ctx context.Context, method string, payload []byte) (json.RawMessage, error) {
	if len(c.nodes) == 0 {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "no candidate nodes configured")
	}

	logID := c.genLogID()
	var lastErr error

	for attempt := 0; attempt < c.cfg.RetryTimes; attempt++ {
		if attempt > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else {
			// Take the bucket's token without blocking, so the first
			// retry waits for a fresh one instead of proceeding at once.
			c.limiter.Allow()
		}

		addr := c.cachedLeader()
		selectedLeader := addr == ""
		if selectedLeader {
			addr = c.randomNode()
		}

		resp, err := c.transport.Send(ctx, addr, method, WireRequest{LogID: logID, Payload: payload}, c.cfg.ConnectTimeout, c.cfg.RequestTimeout)
		if err != nil {
			c.setLeader("")
			lastErr = err
			continue
		}

		switch errcode.Code(resp.Errcode) {
		case errcode.SUCCESS:
			if selectedLeader {
				c.setLeader(addr)
			}
			return resp.Payload, nil

		case errcode.HAVE_NOT_INIT:
			c.setLeader("")
			lastErr = errcode.New(errcode.HAVE_NOT_INIT, resp.Errmsg)
			continue

		case errcode.NOT_LEADER:
			c.setLeader(resp.Leader)
			lastErr = errcode.NotLeader(resp.Leader)
			continue

		default:
			return nil, &errcode.Error{Code: errcode.Code(resp.Errcode), Msg: resp.Errmsg, Leader: resp.Leader}
		}
	}

	if lastErr == nil {
		lastErr = errcode.New(errcode.UNAVAILABLE, "no attempts made")
	}
	return nil, fmt.Errorf("cannot connect to server after %d tries: %w", c.cfg.RetryTimes, lastErr)
}
