package materialize

import "bytes"

// sniffLen is how much of a file is inspected for binary content.
const sniffLen = 8 << 10

// IsBinary reports whether data looks binary: a NUL byte in the first 8 KiB.
func IsBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
