package corefmt

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/zintix-labs/tablewatch/errs"
)

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(err, "decode base64 failed")
	}
	return b, err
}

// EncodeJSONBytes makes it explicit that JSON transport must be text-safe.
// Captured frame crops travel to the inference sidecar through this helper.
func EncodeJSONBytes(b []byte) string {
	return EncodeBase64(b)
}

// DecodeJSONBytes is the counterpart of EncodeJSONBytes.
func DecodeJSONBytes(s string) ([]byte, error) {
	return DecodeBase64(s)
}

// WriteBlobFrame writes a length-prefixed binary frame into w:
//
//	frame := uvarint(len(payload)) || payload
//
// Used for archiving captured PNG frames to disk; NOT JSON-friendly.
func WriteBlobFrame(w io.Writer, payload []byte) error {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return errs.Wrap(err, "write blob frame header failed")
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, "write blob frame payload failed")
	}
	return nil
}

// ReadBlobFrame reads a length-prefixed binary frame from r.
//
// maxBytes is a safety cap to prevent unbounded allocations when reading
// untrusted input; pass 0 to disable the cap for trusted local files.
func ReadBlobFrame(r *bufio.Reader, maxBytes uint64) ([]byte, error) {
	ln, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && ln > maxBytes {
		return nil, errs.NewWarn("read blob frame failed: payload exceeds maxBytes")
	}
	buf := make([]byte, ln)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.Wrap(err, "read blob frame payload failed")
	}
	return buf, nil
}
