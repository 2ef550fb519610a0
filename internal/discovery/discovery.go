package discovery

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/berfenger/pillbox2mqtt/internal/config"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Candidate is a device announced on the local network.
type Candidate struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Browser interface {
	Browse(ctx context.Context) ([]Candidate, error)
}

// ZeroconfBrowser looks for dispensers over mDNS.
type ZeroconfBrowser struct {
	cfg    config.DiscoveryConfig
	logger *zap.Logger
}

func NewZeroconfBrowser(cfg config.DiscoveryConfig, logger *zap.Logger) *ZeroconfBrowser {
	return &ZeroconfBrowser{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// Browse collects announcements until the configured timeout (or ctx) ends.
func (b *ZeroconfBrowser) Browse(ctx context.Context) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout())
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		found []*zeroconf.ServiceEntry
	)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				mu.Lock()
				found = append(found, entry)
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, b.cfg.Service, b.cfg.Domain, entries); err != nil {
		return nil, err
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()
	candidates := FilterCandidates(found, b.cfg.InstancePrefix)
	b.logger.Debug("discovery: browse done", zap.Int("entries", len(found)), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// FilterCandidates keeps IPv4 entries whose instance name has the prefix
// (case-insensitive). Duplicated announcements are collapsed.
func FilterCandidates(entries []*zeroconf.ServiceEntry, prefix string) []Candidate {
	prefix = strings.ToLower(prefix)
	seen := make(map[string]bool)
	candidates := make([]Candidate, 0)
	for _, entry := range entries {
		if entry == nil || len(entry.AddrIPv4) == 0 {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(entry.Instance), prefix) {
			continue
		}
		c := Candidate{
			Name:    entry.Instance,
			Address: candidateAddress(entry.AddrIPv4[0], entry.Port),
		}
		key := c.Name + "|" + c.Address
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Name < candidates[j].Name
	})
	return candidates
}

func candidateAddress(ip net.IP, port int) string {
	if port == 0 || port == 80 {
		return ip.String()
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(port))
}
