// Package prooftest provides minimal byte payloads that sniff as the
// image formats accepted for payment proofs.
package prooftest

// PNG returns a payload carrying a PNG signature and header chunk.
func PNG() []byte {
	return pad([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
}

// JPEG returns a payload carrying a JFIF header.
func JPEG() []byte {
	return pad([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
}

// GIF returns a GIF89a payload.
func GIF() []byte {
	return pad([]byte("GIF89a"))
}

// WebP returns a RIFF/WEBP payload.
func WebP() []byte {
	return pad([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "))
}

// PDF returns a document that must never pass as an image.
func PDF() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
}

// Variant returns a PNG payload that differs from PNG() by its last byte,
// so it hashes differently.
func Variant(seed byte) []byte {
	out := PNG()
	out[len(out)-1] = seed
	return out
}

func pad(head []byte) []byte {
	return append(head, make([]byte, 32)...)
}
