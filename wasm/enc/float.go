package enc

import "github.com/chewxy/math32"

// F32Bits and F32FromBits convert between a float32 and the 32-bit
// pattern a wasm f32 immediate stores, including NaN payloads. Routed
// through math32 rather than the standard library's
// math.Float32bits/Float32frombits since math32 is the float32-native
// package on the teacher's own dependency list (vertexvm/go.mod). The
// decoder and encoder carry f32 immediates as raw bits
// (Immediate.F32Bits) and do not call these; the round-trip tests use
// them to build and inspect f32.const immediates.
func F32Bits(f float32) uint32    { return math32.Float32bits(f) }
func F32FromBits(b uint32) float32 { return math32.Float32frombits(b) }
