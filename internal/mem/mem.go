// mem.go - Endian-correct, alignment-safe guest memory access primitives

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package mem implements reads and writes of 8/16/32-bit guest values
// in 68k byte order (big-endian), correct regardless of host
// endianness, and tolerant of unaligned guest accesses on hosts that
// require alignment. This is spec.md's component B.
package mem

import (
	"unsafe"

	"github.com/intuitionamiga/m68kjit/internal/addr"
)

// Bus is the minimal surface mem needs from an address-space mapper.
type Bus interface {
	GuestToHost(guest uint32) unsafe.Pointer
}

var _ Bus = (addr.Mapper)(nil)

// ReadU8 returns the unsigned byte at the given guest address.
func ReadU8(b Bus, a uint32) uint8 {
	p := (*uint8)(b.GuestToHost(a))
	return *p
}

// ReadS8 returns the byte at the given guest address, sign-extended.
func ReadS8(b Bus, a uint32) int8 {
	return int8(ReadU8(b, a))
}

// ReadU16 returns the big-endian unsigned word at the given guest
// address. Unaligned accesses fall back to byte-at-a-time assembly.
func ReadU16(b Bus, a uint32) uint16 {
	if a&1 != 0 {
		hi := uint16(ReadU8(b, a))
		lo := uint16(ReadU8(b, a+1))
		return hi<<8 | lo
	}
	p := (*uint16)(b.GuestToHost(a))
	return beSwap16(*p)
}

// ReadS16 returns the big-endian word at the given guest address,
// sign-extended.
func ReadS16(b Bus, a uint32) int16 {
	return int16(ReadU16(b, a))
}

// ReadU32 returns the big-endian unsigned longword at the given guest
// address. Unaligned accesses fall back to byte-at-a-time assembly.
func ReadU32(b Bus, a uint32) uint32 {
	if a&3 != 0 {
		b0 := uint32(ReadU8(b, a))
		b1 := uint32(ReadU8(b, a+1))
		b2 := uint32(ReadU8(b, a+2))
		b3 := uint32(ReadU8(b, a+3))
		return b0<<24 | b1<<16 | b2<<8 | b3
	}
	p := (*uint32)(b.GuestToHost(a))
	return beSwap32(*p)
}

// ReadS32 returns the big-endian longword at the given guest address,
// sign-extended (a no-op at 32 bits, provided for symmetry).
func ReadS32(b Bus, a uint32) int32 {
	return int32(ReadU32(b, a))
}

// WriteU8 writes a byte at the given guest address.
func WriteU8(b Bus, a uint32, v uint8) {
	p := (*uint8)(b.GuestToHost(a))
	*p = v
}

// WriteU16 writes a big-endian word at the given guest address.
// Unaligned accesses fall back to byte-at-a-time assembly.
func WriteU16(b Bus, a uint32, v uint16) {
	if a&1 != 0 {
		WriteU8(b, a, uint8(v>>8))
		WriteU8(b, a+1, uint8(v))
		return
	}
	p := (*uint16)(b.GuestToHost(a))
	*p = beSwap16(v)
}

// WriteU32 writes a big-endian longword at the given guest address.
// Unaligned accesses fall back to byte-at-a-time assembly.
func WriteU32(b Bus, a uint32, v uint32) {
	if a&3 != 0 {
		WriteU8(b, a, uint8(v>>24))
		WriteU8(b, a+1, uint8(v>>16))
		WriteU8(b, a+2, uint8(v>>8))
		WriteU8(b, a+3, uint8(v))
		return
	}
	p := (*uint32)(b.GuestToHost(a))
	*p = beSwap32(v)
}

// beSwap16/32 convert between host-native and 68k big-endian byte
// order. On a big-endian host these would be no-ops; every supported
// build target of this module is little-endian (see le_check.go in
// the teacher's original terminal-side code, whose convention this
// module keeps), so the swap always applies.
func beSwap16(v uint16) uint16 {
	return v>>8 | v<<8
}

func beSwap32(v uint32) uint32 {
	return v>>24 | v<<24 | (v>>8)&0xFF00 | (v&0xFF00)<<8
}

// PushSize is the number of bytes a7 moves for a push/pop of the given
// operand size. Byte pushes move a7 by 2, matching 68k stack-alignment
// rules (spec.md §4.B).
func PushSize(size int) uint32 {
	if size == 1 {
		return 2
	}
	return uint32(size)
}
