package conformance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/discovery-go/internal/version"
)

// TestConformance runs the full suite once per supported version date.
func TestConformance(t *testing.T) {
	for _, date := range version.Supported() {
		t.Run(date, func(t *testing.T) {
			harness, err := NewHarness(context.Background(), Config{
				VersionDate: date,
				Username:    "batman",
				Password:    "bruce-wayne",
			})
			require.NoError(t, err)
			defer harness.Close()

			t.Run("Conformance", harness.RunConformanceTests)
			t.Run("Acceptance", harness.RunAcceptanceTests)
		})
	}
}
