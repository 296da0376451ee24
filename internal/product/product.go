package product

import (
	"context"
	"fmt"
)

// UnnamedProduct is shown when the database knows the code but has no name.
const UnnamedProduct = "Unnamed Product"

// Lookup resolves a scanned code against a product database.
type Lookup interface {
	Lookup(ctx context.Context, code string) (*Result, error)
}

type Result struct {
	Found bool
	Name  string
}

// Outcome classifies a lookup for display and metrics.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeNotFound
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Normalize turns the result of one lookup into the name stored for code.
// It never fails: unknown codes and failed lookups get a placeholder that
// carries the code.
func Normalize(code string, res *Result, err error) (string, Outcome) {
	switch {
	case err != nil || res == nil:
		return fmt.Sprintf("Error fetching product (%s)", code), OutcomeError
	case !res.Found:
		return fmt.Sprintf("Unknown product (%s)", code), OutcomeNotFound
	case res.Name == "":
		return UnnamedProduct, OutcomeFound
	default:
		return res.Name, OutcomeFound
	}
}
