package vkcompute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntersectSupported(t *testing.T) {
	supported := []string{
		"VK_KHR_swapchain",
		"VK_KHR_portability_subset",
		"VK_KHR_16bit_storage",
	}

	t.Run("present extension is enabled", func(t *testing.T) {
		enabled := intersectSupported([]string{"VK_KHR_portability_subset"}, supported)
		assert.Equal(t, []string{"VK_KHR_portability_subset"}, enabled)
	})

	t.Run("absent extension is silently omitted", func(t *testing.T) {
		enabled := intersectSupported([]string{"VK_NV_imaginary"}, supported)
		assert.Empty(t, enabled)
	})

	t.Run("mixed request keeps only the intersection in request order", func(t *testing.T) {
		requested := []string{"VK_KHR_16bit_storage", "VK_NV_imaginary", "VK_KHR_portability_subset"}
		enabled := intersectSupported(requested, supported)
		assert.Equal(t, []string{"VK_KHR_16bit_storage", "VK_KHR_portability_subset"}, enabled)
	})

	t.Run("empty request", func(t *testing.T) {
		assert.Empty(t, intersectSupported(nil, supported))
	})

	t.Run("nothing supported", func(t *testing.T) {
		assert.Empty(t, intersectSupported(candidateDeviceExtensions, nil))
	})
}
