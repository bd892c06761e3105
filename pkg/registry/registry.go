// Package registry holds the static per-route bridge configuration: chain
// pairs, token mappings, indexer endpoints and protocol feature flags.
package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Flags describes protocol-variant behavior the engine has to honor.
type Flags struct {
	// SeparateWithdraw marks protocols where a successful fill and the
	// provider's liquidity withdrawal are distinct on-chain steps; the record
	// keeps an empty end hash until withdrawal confirms.
	SeparateWithdraw bool `yaml:"separate_withdraw"`
	// DirectConfirmRefund marks variants whose refund path can reach
	// pendingToConfirmRefund without an explicit request step.
	DirectConfirmRefund bool `yaml:"direct_confirm_refund"`
	// CombinedProviderFeed marks variants without a source/target provider
	// feed split; one feed carries fee, margin and slash updates together.
	CombinedProviderFeed bool `yaml:"combined_provider_feed"`
}

// variantFlags enumerates the known bridge variants and their shapes. A route
// may still override flags explicitly in YAML.
var variantFlags = map[string]Flags{
	"lnv2-default":  {},
	"lnv2-opposite": {DirectConfirmRefund: true, CombinedProviderFeed: true},
	"lnv3":          {SeparateWithdraw: true},
	"lockmint":      {DirectConfirmRefund: true, CombinedProviderFeed: true},
}

// KnownVariant reports whether the bridge tag is an enumerated variant.
func KnownVariant(bridge string) bool {
	_, ok := variantFlags[bridge]
	return ok
}

// TokenMapping relates a source-chain token to its target-chain counterpart.
type TokenMapping struct {
	Symbol       string `yaml:"symbol"`
	FromAddress  string `yaml:"from_address"`
	ToAddress    string `yaml:"to_address"`
	FromDecimals int    `yaml:"from_decimals"`
	ToDecimals   int    `yaml:"to_decimals"`
	FeeToken     string `yaml:"fee_token"`
}

// IndexerEndpoint is one configured indexer backend for a route. SourceURL
// answers source-chain queries (new transfers, provider fee updates, refund
// dispatches); TargetURL answers destination-chain queries (fills, margin
// updates, withdraw status).
type IndexerEndpoint struct {
	Dialect   string `yaml:"dialect"`
	SourceURL string `yaml:"source_url"`
	TargetURL string `yaml:"target_url"`
}

// Route is one configured (source chain, target chain, bridge variant)
// triple, synchronized independently of all other routes.
type Route struct {
	FromChain     string            `yaml:"from_chain"`
	ToChain       string            `yaml:"to_chain"`
	RemoteChainID int64             `yaml:"remote_chain_id"`
	Bridge        string            `yaml:"bridge"`
	Direction     string            `yaml:"direction"` // lock or unlock
	Interval      time.Duration     `yaml:"interval"`
	Flags         *Flags            `yaml:"flags"`
	Indexers      []IndexerEndpoint `yaml:"indexers"`
	Tokens        []TokenMapping    `yaml:"tokens"`
}

// ID returns the route identifier used for cursors, record ids and metrics.
func (r *Route) ID() string {
	return r.FromChain + "-" + r.ToChain + "-" + r.Bridge
}

// VariantFlags resolves the route's effective feature flags.
func (r *Route) VariantFlags() Flags {
	if r.Flags != nil {
		return *r.Flags
	}
	return variantFlags[r.Bridge]
}

// TokenByFromAddress resolves the token mapping for a source-chain token
// address. The second return is false for unmapped tokens; callers drop the
// event but still advance their cursor.
func (r *Route) TokenByFromAddress(addr string) (*TokenMapping, bool) {
	want := NormalizeAddress(addr)
	for i := range r.Tokens {
		if NormalizeAddress(r.Tokens[i].FromAddress) == want {
			return &r.Tokens[i], true
		}
	}
	return nil, false
}

// TokenByToAddress resolves the token mapping for a target-chain token
// address, used by target-side provider-update feeds.
func (r *Route) TokenByToAddress(addr string) (*TokenMapping, bool) {
	want := NormalizeAddress(addr)
	for i := range r.Tokens {
		if NormalizeAddress(r.Tokens[i].ToAddress) == want {
			return &r.Tokens[i], true
		}
	}
	return nil, false
}

// Registry is the set of configured routes.
type Registry struct {
	routes []*Route
	byID   map[string]*Route
}

type routesFile struct {
	Routes []*Route `yaml:"routes"`
}

// Load reads and validates the route registry YAML document.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	var file routesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}

	reg := &Registry{byID: make(map[string]*Route)}
	for _, route := range file.Routes {
		if route.FromChain == "" || route.ToChain == "" || route.Bridge == "" {
			return nil, fmt.Errorf("route %q: from_chain, to_chain and bridge are required", route.ID())
		}
		if route.Flags == nil && !KnownVariant(route.Bridge) {
			return nil, fmt.Errorf("route %q: unknown bridge variant %q and no explicit flags", route.ID(), route.Bridge)
		}
		if len(route.Indexers) == 0 {
			return nil, fmt.Errorf("route %q: at least one indexer endpoint is required", route.ID())
		}
		if _, dup := reg.byID[route.ID()]; dup {
			return nil, fmt.Errorf("duplicate route %q", route.ID())
		}
		reg.routes = append(reg.routes, route)
		reg.byID[route.ID()] = route
	}
	return reg, nil
}

// Routes returns all configured routes.
func (g *Registry) Routes() []*Route {
	return g.routes
}

// Route looks a route up by id.
func (g *Registry) Route(id string) (*Route, bool) {
	r, ok := g.byID[id]
	return r, ok
}

// NormalizeAddress canonicalizes token/account addresses for comparison.
// EVM addresses are checksummed-then-lowercased; anything else is compared
// as-is (non-EVM chains have their own formats).
func NormalizeAddress(addr string) string {
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return addr
}
