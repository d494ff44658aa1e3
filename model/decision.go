// model/decision.go
package model

import "fmt"

type ScaleAction string

const (
	ActionNoOp     ScaleAction = "NoOp"
	ActionScaleOut ScaleAction = "ScaleOut"
	ActionScaleIn  ScaleAction = "ScaleIn"
)

// ScaleDecision is the output of one controller evaluation.
type ScaleDecision struct {
	Action ScaleAction `json:"action"`
	By     int         `json:"by,omitempty"`
}

func NoOp() ScaleDecision { return ScaleDecision{Action: ActionNoOp} }

func ScaleOut(by int) ScaleDecision { return ScaleDecision{Action: ActionScaleOut, By: by} }

func ScaleIn(by int) ScaleDecision { return ScaleDecision{Action: ActionScaleIn, By: by} }

func (d ScaleDecision) IsNoOp() bool { return d.Action == ActionNoOp || d.Action == "" }

func (d ScaleDecision) String() string {
	if d.IsNoOp() {
		return string(ActionNoOp)
	}
	return fmt.Sprintf("%s(by=%d)", d.Action, d.By)
}
