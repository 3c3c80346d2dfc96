package pipeline

import "github.com/avmux/compositor-core/pkg/pipeids"

// Scene is an opaque scene-tree description handed to the external
// renderer collaborator; the core never inspects its contents (spec §1:
// "The GPU renderer / scene composer ... treats it as render(frame_set,
// scene) -> frame").
type Scene any

// EndConditionKind enumerates spec §3's Output end-condition policies.
type EndConditionKind int

const (
	// EndNever keeps the output alive regardless of input EOS state; it
	// is closed only by an explicit UnregisterOutput.
	EndNever EndConditionKind = iota
	// EndAllInputsFinished closes the output once every registered
	// input has reached EOS on every track it registered.
	EndAllInputsFinished
	// EndAnyInputFinished closes the output as soon as any one
	// registered input reaches EOS.
	EndAnyInputFinished
	// EndAnyOf closes the output as soon as any one input named in Set
	// has reached EOS.
	EndAnyOf
)

// EndCondition decides when an output is considered finished and should
// flush and close. Set is only consulted when Kind is EndAnyOf.
type EndCondition struct {
	Kind EndConditionKind
	Set  []pipeids.InputID
}
