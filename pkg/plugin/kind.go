// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin defines the author-facing API for metric plugins: the
// plugin meta record, the capability interfaces each plugin kind implements,
// and the metric value model exchanged with the orchestrator.
package plugin

// Kind identifies which capability set a plugin implements.
type Kind int

// Plugin kinds. The numeric values are part of the handshake contract.
const (
	KindCollector Kind = iota
	KindProcessor
	KindPublisher
	KindStreamCollector
)

// String returns the string representation of a Kind.
// Unrecognized kinds return "unknown".
func (k Kind) String() string {
	switch k {
	case KindCollector:
		return "collector"
	case KindProcessor:
		return "processor"
	case KindPublisher:
		return "publisher"
	case KindStreamCollector:
		return "streamCollector"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindCollector && k <= KindStreamCollector
}

// RoutingStrategy tells the orchestrator how to route tasks across instances.
type RoutingStrategy int

// Routing strategies.
const (
	RoutingLRU RoutingStrategy = iota
	RoutingSticky
	RoutingConfigBased
)

// String returns the string representation of a RoutingStrategy.
func (r RoutingStrategy) String() string {
	switch r {
	case RoutingLRU:
		return "lru"
	case RoutingSticky:
		return "sticky"
	case RoutingConfigBased:
		return "config"
	default:
		return "unknown"
	}
}

// RPCType is the RPC flavour advertised in the preamble.
type RPCType int

// RPC types.
const (
	RPCNative RPCType = iota
	RPCJSON
	RPCGRPC
	RPCGRPCStream
)

// String returns the string representation of an RPCType.
func (t RPCType) String() string {
	switch t {
	case RPCNative:
		return "Native"
	case RPCJSON:
		return "JSON"
	case RPCGRPC:
		return "gRPC"
	case RPCGRPCStream:
		return "gRPCStream"
	default:
		return "unknown"
	}
}
