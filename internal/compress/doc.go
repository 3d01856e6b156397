// Package compress wraps JSON Lines streams in gzip, zstd or lz4 framing.
//
// Imports accept compressed bodies and drop files; exports can be written
// compressed. The codec is chosen explicitly (ParseType, FromContentEncoding),
// from a file name (FromExtension) or by sniffing the stream's magic bytes
// (Sniff).
//
// Example:
//
//	br := bufio.NewReader(file)
//	typ, err := compress.Sniff(br)
//	if err != nil {
//	    return err
//	}
//	rc, err := compress.NewReader(br, typ)
package compress
