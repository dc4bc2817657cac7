package noderepo

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/lbryio/lbcd/claimtrie/node"
)

// encode serializes n into a compact binary row; the format is private to
// this repo implementation, never exposed across the node.Repo interface.
func encode(n *node.Node) []byte {
	var buf bytes.Buffer

	if n.HasTakeover {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeInt32(&buf, n.TakeoverHeight)
	buf.Write(n.TakeoverClaimID[:])

	writeInt32(&buf, int32(len(n.Claims)))
	for _, c := range n.Claims {
		buf.Write(c.ClaimID[:])
		buf.Write(c.OutPoint.Hash[:])
		writeUint32(&buf, c.OutPoint.Index)
		writeInt64(&buf, c.Amount)
		writeInt32(&buf, c.BlockHeight)
		writeInt32(&buf, c.ValidHeight)
		writeInt32(&buf, c.ExpirationHeight)
		writeBytes(&buf, c.Metadata)
	}

	writeInt32(&buf, int32(len(n.Supports)))
	for _, s := range n.Supports {
		buf.Write(s.SupportedClaimID[:])
		buf.Write(s.OutPoint.Hash[:])
		writeUint32(&buf, s.OutPoint.Index)
		writeInt64(&buf, s.Amount)
		writeInt32(&buf, s.BlockHeight)
		writeInt32(&buf, s.ValidHeight)
		writeInt32(&buf, s.ExpirationHeight)
		writeBytes(&buf, s.Metadata)
	}

	return buf.Bytes()
}

func decode(name, raw []byte) (*node.Node, error) {
	n := node.NewNode(name)
	r := bytes.NewReader(raw)

	hasTakeover, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "decoding takeover flag")
	}
	n.HasTakeover = hasTakeover != 0

	n.TakeoverHeight, err = readInt32(r)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, n.TakeoverClaimID[:]); err != nil {
		return nil, errors.Wrap(err, "decoding takeover claim id")
	}

	numClaims, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < numClaims; i++ {
		c := &node.Claim{}
		if _, err := io.ReadFull(r, c.ClaimID[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, c.OutPoint.Hash[:]); err != nil {
			return nil, err
		}
		if c.OutPoint.Index, err = readUint32(r); err != nil {
			return nil, err
		}
		if c.Amount, err = readInt64(r); err != nil {
			return nil, err
		}
		if c.BlockHeight, err = readInt32(r); err != nil {
			return nil, err
		}
		if c.ValidHeight, err = readInt32(r); err != nil {
			return nil, err
		}
		if c.ExpirationHeight, err = readInt32(r); err != nil {
			return nil, err
		}
		if c.Metadata, err = readBytes(r); err != nil {
			return nil, err
		}
		n.Claims = append(n.Claims, c)
	}

	numSupports, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < numSupports; i++ {
		s := &node.Support{}
		if _, err := io.ReadFull(r, s.SupportedClaimID[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, s.OutPoint.Hash[:]); err != nil {
			return nil, err
		}
		if s.OutPoint.Index, err = readUint32(r); err != nil {
			return nil, err
		}
		if s.Amount, err = readInt64(r); err != nil {
			return nil, err
		}
		if s.BlockHeight, err = readInt32(r); err != nil {
			return nil, err
		}
		if s.ValidHeight, err = readInt32(r); err != nil {
			return nil, err
		}
		if s.ExpirationHeight, err = readInt32(r); err != nil {
			return nil, err
		}
		if s.Metadata, err = readBytes(r); err != nil {
			return nil, err
		}
		n.Supports = append(n.Supports, s)
	}

	return n, nil
}

func writeInt32(buf *bytes.Buffer, v int32)  { writeUint32(buf, uint32(v)) }
func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}
func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func readInt32(r *bytes.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}
func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.Wrap(err, "reading uint32")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.Wrap(err, "reading int64")
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}
func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "reading bytes")
	}
	return b, nil
}
