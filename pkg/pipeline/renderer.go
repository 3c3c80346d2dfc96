package pipeline

import (
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

// Renderer is the external GPU renderer/scene composer collaborator
// (spec §1 scopes it out of the core: "the core treats it as
// render(frame_set, scene) -> frame with a configured output format").
// Each registered output owns one Scene and its own Renderer, called
// once per video tick.
type Renderer interface {
	Render(batch videoqueue.Batch, scene Scene) (pipeevent.Frame, error)
}
