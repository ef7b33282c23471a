// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio provides microphone capture and utterance framing.
package audio

import (
	"bytes"
	"encoding/binary"
)

// wavHeaderSize is the byte length of a canonical PCM WAV header.
const wavHeaderSize = 44

// EncodeWAV serializes a sample as a 16-bit mono PCM WAV file, the
// container the recognition service expects.
func EncodeWAV(sample *Sample) []byte {
	dataSize := len(sample.PCM) * 2

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	// RIFF chunk
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt chunk: PCM, mono, 16-bit
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // audio format: PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // channels
	binary.Write(buf, binary.LittleEndian, uint32(sample.Rate))
	binary.Write(buf, binary.LittleEndian, uint32(sample.Rate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))             // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))            // bits per sample

	// data chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(buf, binary.LittleEndian, sample.PCM)

	return buf.Bytes()
}

// decodePCM converts raw little-endian S16 bytes to samples. Each call
// returns a fresh slice; callers may retain it.
func decodePCM(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}
