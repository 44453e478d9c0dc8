// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/state"
)

// Storage layout: BLAKE3("cfg0" || field)
var settingsPrefix = []byte("cfg0")

var (
	settingsInitKey  = state.Key(settingsPrefix, []byte("init"))
	settingsAdminKey = state.Key(settingsPrefix, []byte("admin"))
)

// settings is the mutable program config written by initialize_config.
type settings struct {
	state contract.StateDB
}

func newSettings(state contract.StateDB) settings {
	return settings{state: state}
}

func (s settings) initialized() bool {
	return s.state.GetState(settingsInitKey) != (common.Hash{})
}

func (s settings) initialize(admin solana.PublicKey) {
	s.state.SetState(settingsInitKey, common.Hash{31: 1})
	s.state.SetState(settingsAdminKey, common.Hash(admin))
}

func (s settings) admin() solana.PublicKey {
	return solana.PublicKey(s.state.GetState(settingsAdminKey))
}

// Admin returns the config admin, if the config is initialized.
func Admin(state contract.StateDB) (solana.PublicKey, bool) {
	s := newSettings(state)
	if !s.initialized() {
		return solana.PublicKey{}, false
	}
	return s.admin(), true
}
