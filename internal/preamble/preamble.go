// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package preamble builds the one-line JSON handshake a plugin writes to
// stdout (or serves over HTTP in standalone mode) so the orchestrator can
// identify and reach it.
package preamble

import (
	"bytes"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/holomush/snapplugin/pkg/plugin"
)

// State reports whether plugin bootstrap succeeded.
type State int

// Preamble states.
const (
	StateSuccess State = iota
	StateFailure
)

// MetaDoc is the wire form of plugin.Meta. Field names are part of the
// handshake contract.
type MetaDoc struct {
	Name             string `json:"Name" jsonschema:"minLength=1"`
	Version          int    `json:"Version" jsonschema:"minimum=1"`
	Type             int    `json:"Type" jsonschema:"minimum=0,maximum=3"`
	RPCType          int    `json:"RPCType" jsonschema:"minimum=0,maximum=3"`
	RPCVersion       int    `json:"RPCVersion" jsonschema:"minimum=1"`
	ConcurrencyCount int    `json:"ConcurrencyCount" jsonschema:"minimum=1"`
	Exclusive        bool   `json:"Exclusive"`
	// CacheTTL is in nanoseconds; zero leaves the orchestrator default.
	CacheTTL        int64    `json:"CacheTTL" jsonschema:"minimum=0"`
	RoutingStrategy int      `json:"RoutingStrategy" jsonschema:"minimum=0,maximum=2"`
	RootCertPaths   []string `json:"RootCertPaths"`
	CertPath        string   `json:"CertPath"`
	KeyPath         string   `json:"KeyPath"`
	Ciphers         []string `json:"Ciphers"`
	TLSEnabled      bool     `json:"TLSEnabled"`
}

// Preamble is the handshake document.
type Preamble struct {
	Meta          MetaDoc `json:"Meta"`
	ListenAddress string  `json:"ListenAddress"`
	// Token and PublicKey are reserved and always null.
	Token     *string `json:"Token" jsonschema:"nullable"`
	PublicKey *string `json:"PublicKey" jsonschema:"nullable"`
	// Type duplicates Meta.Type for older orchestrators.
	Type         int     `json:"Type" jsonschema:"minimum=0,maximum=3"`
	ErrorMessage *string `json:"ErrorMessage" jsonschema:"nullable"`
	State        State   `json:"State" jsonschema:"enum=0,enum=1"`
}

// FromMeta converts a plugin meta record to its wire form.
func FromMeta(m plugin.Meta) MetaDoc {
	return MetaDoc{
		Name:             m.Name,
		Version:          m.Version,
		Type:             int(m.Kind),
		RPCType:          int(m.RPCType),
		RPCVersion:       m.RPCVersion,
		ConcurrencyCount: m.ConcurrencyCount,
		Exclusive:        m.Exclusive,
		CacheTTL:         int64(m.CacheTTL),
		RoutingStrategy:  int(m.RoutingStrategy),
		RootCertPaths:    nonNil(m.RootCertPaths),
		CertPath:         m.CertPath,
		KeyPath:          m.KeyPath,
		Ciphers:          nonNil(m.CipherSuites),
		TLSEnabled:       m.TLSEnabled,
	}
}

// New builds a success preamble for a plugin listening on addr.
func New(m plugin.Meta, addr string) Preamble {
	return Preamble{
		Meta:          FromMeta(m),
		ListenAddress: addr,
		Type:          int(m.Kind),
		State:         StateSuccess,
	}
}

// Failure builds a failure preamble carrying err's message.
func Failure(m plugin.Meta, err error) Preamble {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Preamble{
		Meta:         FromMeta(m),
		Type:         int(m.Kind),
		ErrorMessage: &msg,
		State:        StateFailure,
	}
}

// Encode renders the preamble as a single line terminated by a newline.
func (p Preamble) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, oops.Code("PREAMBLE_ENCODE_FAILED").Wrap(err)
	}
	return append(data, '\n'), nil
}

// Decode parses a preamble line.
func Decode(data []byte) (Preamble, error) {
	var p Preamble
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return p, oops.Code("INVALID_PREAMBLE").Errorf("preamble is empty")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, oops.Code("INVALID_PREAMBLE").Wrapf(err, "decode preamble")
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
