package extract

import (
	"fmt"

	"github.com/lukman83/dealscout/internal/platform"
)

// Deps are what the named strategies may need.
type Deps struct {
	Extractor ContentExtractor
	ScanLimit int
}

// Build turns configured strategy names into strategies, keeping order.
func Build(names []string, deps Deps) ([]platform.Strategy, error) {
	out := make([]platform.Strategy, 0, len(names))
	for _, n := range names {
		switch n {
		case "ai":
			out = append(out, NewAIStrategy(deps.Extractor))
		case "jsonld":
			out = append(out, NewJSONLDStrategy())
		case "heuristic":
			out = append(out, NewHeuristicStrategy(deps.ScanLimit))
		default:
			return nil, fmt.Errorf("unknown extraction strategy %q", n)
		}
	}
	return out, nil
}
