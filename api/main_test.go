package api

import (
	"fmt"
	"os"
	"testing"

	"github.com/shopspring/decimal"
)

// TestMain checks that importing api leaves decimal's JSON encoding alone,
// then opts in to numeric amounts the way cmd/server does.
func TestMain(m *testing.M) {
	if decimal.MarshalJSONWithoutQuotes {
		fmt.Fprintln(os.Stderr, "decimal.MarshalJSONWithoutQuotes was set by a package import")
		os.Exit(1)
	}
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}
