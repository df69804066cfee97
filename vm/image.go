package vm

import "fmt"

// ImageHeaderNibbles is the size, in nibbles (and bytes, since the image
// format stores one datum per byte), of the five pointer-register fields
// that precede a program's code in an assembled image.
const ImageHeaderNibbles = 20

// ImageHeader is the decoded form of an image's first 20 bytes: the initial
// values for PC, SP, IV, IX, and TA, each a 16-bit quartet of nibbles.
type ImageHeader struct {
	PC, SP, IV, IX, TA uint16
}

func putQuartet(dst []byte, v uint16) {
	dst[0] = uint8((v >> 12) & 0xF)
	dst[1] = uint8((v >> 8) & 0xF)
	dst[2] = uint8((v >> 4) & 0xF)
	dst[3] = uint8(v & 0xF)
}

func getQuartet(src []byte) uint16 {
	return uint16(src[0])<<12 | uint16(src[1])<<8 | uint16(src[2])<<4 | uint16(src[3])
}

// Encode renders the header as its 20-byte on-image representation.
func (h ImageHeader) Encode() [ImageHeaderNibbles]byte {
	var buf [ImageHeaderNibbles]byte
	putQuartet(buf[0:4], h.PC)
	putQuartet(buf[4:8], h.SP)
	putQuartet(buf[8:12], h.IV)
	putQuartet(buf[12:16], h.IX)
	putQuartet(buf[16:20], h.TA)
	return buf
}

// BuildImage composes a bootable image: the header's 20-byte encoding
// followed by the assembled code verbatim. The assembler itself never
// constructs a header (its Pass 2 output is pure code starting at offset 0,
// matching the original's build_image), so callers that need a loadable
// file - the CLI's assemble subcommand - call this explicitly with whatever
// initial register values the program expects.
func BuildImage(code []byte, hdr ImageHeader) []byte {
	encoded := hdr.Encode()
	img := make([]byte, 0, len(encoded)+len(code))
	img = append(img, encoded[:]...)
	img = append(img, code...)
	return img
}

// DecodeImageHeader parses the first 20 bytes of img into an ImageHeader.
func DecodeImageHeader(img []byte) (ImageHeader, error) {
	if len(img) < ImageHeaderNibbles {
		return ImageHeader{}, fmt.Errorf("image too short for header: got %d bytes, need %d", len(img), ImageHeaderNibbles)
	}
	return ImageHeader{
		PC: getQuartet(img[0:4]),
		SP: getQuartet(img[4:8]),
		IV: getQuartet(img[8:12]),
		IX: getQuartet(img[12:16]),
		TA: getQuartet(img[16:20]),
	}, nil
}
