package object

import (
	"bytes"

	"github.com/ngit-go/ngit/internal/readutil"
)

// parseHeaderLines walks the key/value header shared by commits and
// tags: one "key value" pair per line, up to a blank line that
// introduces the free-form message making up the rest of objData.
// handle is invoked once per field, in document order. A "gpgsig"
// field's value is special-cased to span multiple lines, folding
// everything up to and including "-----END PGP SIGNATURE-----" into a
// single value so the caller never sees the signature split across
// handle calls.
//
// noFirstLine is returned verbatim when objData has no header at all.
func parseHeaderLines(objData []byte, noFirstLine error, handle func(key string, value []byte) error) (message string, err error) {
	offset := 0
	for {
		line := readutil.ReadTo(objData[offset:], '\n')
		offset += len(line) + 1 // +1 to count the \n

		// If we didn't find anything then something is wrong
		if len(line) == 0 && offset == 1 {
			return "", noFirstLine
		}

		// an empty line means everything from here to the end is the message
		if len(line) == 0 {
			if offset < len(objData) {
				message = string(objData[offset:])
			}
			return message, nil
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		key, value := string(kv[0]), kv[1]

		if key == "gpgsig" {
			end := "-----END PGP SIGNATURE-----"
			i := bytes.Index(objData[offset:], []byte(end))
			sig := make([]byte, 0, len(value)+1+i+len(end))
			sig = append(sig, value...)
			sig = append(sig, '\n')
			sig = append(sig, objData[offset:offset+i]...)
			sig = append(sig, end...)
			value = sig
			offset += len(end) + i + 1 // +1 to count the \n
		}

		if err := handle(key, value); err != nil {
			return "", err
		}
	}
}
