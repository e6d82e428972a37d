package vkcompute

import (
	"unsafe"
)

var end = "\x00"
var endChar byte = '\x00'

// safeString ensures a string is NUL terminated as required by the
// native Vulkan APIs.
func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// sliceUint32 reinterprets SPIR-V bytes as the uint32 words
// vk.CreateShaderModule expects. The byte length must be a non-zero
// multiple of 4.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
