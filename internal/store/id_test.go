package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveID(t *testing.T) {
	t.Parallel()

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		id := uuid.New().String()
		assert.Equal(t, DeriveID(id), DeriveID(id))
	})

	t.Run("parses first 8 hex chars", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, int64(0x1a2b3c4d), DeriveID("1a2b3c4d-0000-0000-0000-000000000000"))
	})

	t.Run("skips separators", func(t *testing.T) {
		t.Parallel()
		// Dashes do not count toward the 8 hex characters.
		assert.Equal(t, int64(0x1a2b3c4d), DeriveID("1a2b-3c4d-ffff"))
	})

	t.Run("fits 32-bit range", func(t *testing.T) {
		t.Parallel()
		for i := 0; i < 1000; i++ {
			n := DeriveID(uuid.New().String())
			assert.GreaterOrEqual(t, n, int64(0))
			assert.LessOrEqual(t, n, int64(0xffffffff))
		}
	})

	t.Run("no collisions at moderate counts", func(t *testing.T) {
		t.Parallel()
		// The derivation truncates to 32 bits, so collisions follow the
		// birthday bound. A few thousand records keep the probability tiny;
		// this guards the assumption rather than proving safety at scale.
		seen := make(map[int64]string, 1000)
		for i := 0; i < 1000; i++ {
			id := uuid.New().String()
			n := DeriveID(id)
			if prev, ok := seen[n]; ok {
				t.Fatalf("collision between %s and %s at %d after %d ids", prev, id, n, i)
			}
			seen[n] = id
		}
	})

	t.Run("non-hex input yields zero", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, int64(0), DeriveID("zzzz"))
	})
}
