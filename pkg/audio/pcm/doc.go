// Package pcm provides raw PCM audio format math and sample conversion.
//
// All audio in the system is mono 16-bit signed little-endian PCM at either
// 16 kHz (capture side) or 24 kHz (synthesis side). The package converts
// between network byte buffers, normalized float sample buffers, and the
// base64 text form used at the websocket boundary.
package pcm
