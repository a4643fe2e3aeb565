package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"tokenmigration/cache"
	"tokenmigration/solprogram"
)

// Endpoint is where a network's ledger and migration program live.
type Endpoint struct {
	Network   string `json:"network"`
	RPCURL    string `json:"rpc_url"`
	ProgramID string `json:"program_id"`
}

// resolvedTTL bounds how long a resolved endpoint is reused before the overrides are
// consulted again.
const resolvedTTL = time.Hour

var knownNetworks = map[string]Endpoint{
	solprogram.NetworkMainnet: {
		RPCURL:    rpc.MainNetBeta_RPC,
		ProgramID: solprogram.MigrationProgramIDMainnet,
	},
	solprogram.NetworkDevnet: {
		RPCURL:    rpc.DevNet_RPC,
		ProgramID: solprogram.MigrationProgramIDDevnet,
	},
	solprogram.NetworkLocalnet: {
		RPCURL:    rpc.LocalNet_RPC,
		ProgramID: solprogram.MigrationProgramIDDevnet,
	},
}

// Resolver maps network names to endpoints. Non-empty override fields replace the
// built-in values; networks with no built-in entry resolve only when their override
// carries both fields. Safe for concurrent use.
type Resolver struct {
	overrides map[string]Endpoint
	resolved  *cache.TTL[Endpoint]
}

// NewResolver creates a resolver with per-network overrides.
func NewResolver(overrides map[string]Endpoint) *Resolver {
	copied := make(map[string]Endpoint, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	return &Resolver{
		overrides: copied,
		resolved:  cache.NewTTL[Endpoint](cache.WithCapacity(16)),
	}
}

// Resolve returns the endpoint for network. The program ID is checked to be a valid
// public key.
func (r *Resolver) Resolve(network string) (Endpoint, error) {
	if ep, ok := r.resolved.Get(network); ok {
		return ep, nil
	}

	ep, known := knownNetworks[network]
	if o, ok := r.overrides[network]; ok {
		if o.RPCURL != "" {
			ep.RPCURL = o.RPCURL
		}
		if o.ProgramID != "" {
			ep.ProgramID = o.ProgramID
		}
		known = known || (o.RPCURL != "" && o.ProgramID != "")
	}
	if !known {
		return Endpoint{}, fmt.Errorf("unknown network %q (known: %v)", network, Networks())
	}
	if _, err := solana.PublicKeyFromBase58(ep.ProgramID); err != nil {
		return Endpoint{}, fmt.Errorf("invalid program ID for %s: %w", network, err)
	}

	ep.Network = network
	r.resolved.Set(network, ep, resolvedTTL)
	return ep, nil
}

// Reset forgets every resolved endpoint.
func (r *Resolver) Reset() {
	r.resolved.Clear()
}

// NewClient resolves network and connects a migration client to it.
func (r *Resolver) NewClient(network string, opts ...solprogram.Option) (*solprogram.MigrationClient, error) {
	ep, err := r.Resolve(network)
	if err != nil {
		return nil, err
	}
	return solprogram.NewMigrationClientFromURL(ep.RPCURL, ep.ProgramID, ep.Network, opts...)
}

// Networks lists the built-in network names.
func Networks() []string {
	names := make([]string, 0, len(knownNetworks))
	for name := range knownNetworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
