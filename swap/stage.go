// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

// Stage is a step of the swap state machine. Stages only advance.
type Stage uint8

const (
	StageValidate Stage = iota
	StagePullInput
	StageSnapshot
	StageInvokeRouter
	StageVerify
	StagePayUser
	StagePayFee
	StageDone
)

var stageNames = [...]string{
	StageValidate:     "validate",
	StagePullInput:    "pull_input",
	StageSnapshot:     "snapshot",
	StageInvokeRouter: "invoke_router",
	StageVerify:       "verify",
	StagePayUser:      "pay_user",
	StagePayFee:       "pay_fee",
	StageDone:         "done",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}
