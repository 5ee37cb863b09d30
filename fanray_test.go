package fanray_test

import (
	"testing"

	"github.com/fanray/fanray"
	"github.com/stretchr/testify/assert"
)

func TestSha256Hex(t *testing.T) {
	t.Run("known digest", func(t *testing.T) {
		// echo -n "fanray" | sha256sum
		assert.Equal(t,
			"5ede12243ef2b8ace796d713d03a5bb9b9f7166235de4551da7fceb28ec5b64a",
			fanray.Sha256Hex("fanray"))
	})

	t.Run("digest differs per input", func(t *testing.T) {
		assert.NotEqual(t, fanray.Sha256Hex("a"), fanray.Sha256Hex("b"))
	})
}

func TestRandomString(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s := fanray.RandomString(6)
		assert.Len(t, s, 6)
		for _, r := range s {
			assert.Contains(t, "abcdefghijklmnopqrstuvwxyz0123456789", string(r))
		}
		seen[s] = true
	}
	// 50 draws from 36^6 should not collide into a single value
	assert.Greater(t, len(seen), 1)
}
