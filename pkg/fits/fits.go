// Package fits implements the structural layer of the Flexible Image
// Transport System format: 80-byte header cards, 2880-byte header blocks and
// the layout of Header/Data Units inside a file.
//
// The package only describes bytes it is given. Opening files, mapping them
// into memory and decoding table rows live in internal/source and
// pkg/fits/bintable.
package fits

// FITS structural constants must never change.
const (
	// BlockSize is the size of every header and data block.
	BlockSize = 2880

	// CardSize is the size of one header keyword record.
	CardSize = 80

	// KeywordSize is the width of the keyword field at the start of a card.
	KeywordSize = 8
)

// PadToBlock rounds n up to the next multiple of BlockSize.
func PadToBlock(n int64) int64 {
	if r := n % BlockSize; r != 0 {
		return n + BlockSize - r
	}
	return n
}
