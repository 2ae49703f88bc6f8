package wand

import (
	"fmt"

	"wizardry/internal/game"
)

// Button names as the device bridge reports them. The four face buttons
// select a target by participant color order.
var buttonNames = map[string]game.Button{
	"trigger":  game.ButtonShield,
	"move":     game.ButtonCounter,
	"square":   game.ButtonTarget0,
	"triangle": game.ButtonTarget1,
	"circle":   game.ButtonTarget2,
	"cross":    game.ButtonTarget3,
}

// ParseButton maps a button name to the arena button.
func ParseButton(name string) (game.Button, bool) {
	b, ok := buttonNames[name]
	return b, ok
}

// ButtonName returns the wire name of b, or "" if it has none.
func ButtonName(b game.Button) string {
	for name, v := range buttonNames {
		if v == b {
			return name
		}
	}
	return ""
}

// Edges turns button name lists into ordered edges. Releases come first so
// sliding from one target button to another retargets within one sample.
func Edges(pressed, released []string) ([]game.ButtonEdge, error) {
	if len(pressed)+len(released) == 0 {
		return nil, nil
	}
	edges := make([]game.ButtonEdge, 0, len(pressed)+len(released))
	for _, name := range released {
		b, ok := ParseButton(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownButton, name)
		}
		edges = append(edges, game.ButtonEdge{Button: b, Pressed: false})
	}
	for _, name := range pressed {
		b, ok := ParseButton(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownButton, name)
		}
		edges = append(edges, game.ButtonEdge{Button: b, Pressed: true})
	}
	return edges, nil
}
