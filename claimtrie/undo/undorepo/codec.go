// Package undorepo implements undo.Repo on pebble, one row per block
// height holding that block's full node.UndoBuckets.
package undorepo

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"

	"github.com/lbryio/lbcd/claimtrie/change"
	"github.com/lbryio/lbcd/claimtrie/node"
)

func encode(u node.UndoBuckets) []byte {
	var buf bytes.Buffer

	writeInt32(&buf, u.Height)

	writeInt32(&buf, int32(len(u.Inserts)))
	for _, r := range u.Inserts {
		writeInsert(&buf, r)
	}
	writeInt32(&buf, int32(len(u.SupportInserts)))
	for _, r := range u.SupportInserts {
		writeInsert(&buf, r)
	}
	writeInt32(&buf, int32(len(u.ClaimExpirations)))
	for _, r := range u.ClaimExpirations {
		writeBytes(&buf, r.Name)
		writeClaim(&buf, r.Claim)
	}
	writeInt32(&buf, int32(len(u.SupportExpirations)))
	for _, r := range u.SupportExpirations {
		writeBytes(&buf, r.Name)
		writeSupport(&buf, r.Support)
	}
	writeInt32(&buf, int32(len(u.Takeovers)))
	for _, r := range u.Takeovers {
		writeBytes(&buf, r.Name)
		if r.HadPriorClaimID {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeInt32(&buf, r.PriorHeight)
		buf.Write(r.PriorClaimID[:])
	}

	writeInt32(&buf, int32(len(u.ClaimCreates)))
	for _, r := range u.ClaimCreates {
		writeBytes(&buf, r.Name)
		buf.Write(r.ClaimID[:])
		buf.Write(r.OutPoint.Hash[:])
		writeUint32(&buf, r.OutPoint.Index)
	}

	writeInt32(&buf, int32(len(u.SupportCreates)))
	for _, r := range u.SupportCreates {
		writeBytes(&buf, r.Name)
		buf.Write(r.OutPoint.Hash[:])
		writeUint32(&buf, r.OutPoint.Index)
	}

	writeInt32(&buf, int32(len(u.ClaimUpdates)))
	for _, r := range u.ClaimUpdates {
		writeBytes(&buf, r.Name)
		writeClaim(&buf, r.Prior)
	}

	return buf.Bytes()
}

func decode(raw []byte) (node.UndoBuckets, error) {
	var u node.UndoBuckets
	r := bytes.NewReader(raw)

	var err error
	if u.Height, err = readInt32(r); err != nil {
		return u, err
	}

	n, err := readInt32(r)
	if err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		rec, err := readInsert(r)
		if err != nil {
			return u, err
		}
		u.Inserts = append(u.Inserts, rec)
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		rec, err := readInsert(r)
		if err != nil {
			return u, err
		}
		u.SupportInserts = append(u.SupportInserts, rec)
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return u, err
		}
		claim, err := readClaim(r)
		if err != nil {
			return u, err
		}
		u.ClaimExpirations = append(u.ClaimExpirations, node.ClaimExpireUndo{Name: name, Claim: claim})
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return u, err
		}
		support, err := readSupport(r)
		if err != nil {
			return u, err
		}
		u.SupportExpirations = append(u.SupportExpirations, node.SupportExpireUndo{Name: name, Support: support})
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return u, err
		}
		hadPrior, err := r.ReadByte()
		if err != nil {
			return u, errors.Wrap(err, "reading takeover flag")
		}
		priorHeight, err := readInt32(r)
		if err != nil {
			return u, err
		}
		var priorID change.ClaimID
		if _, err := io.ReadFull(r, priorID[:]); err != nil {
			return u, errors.Wrap(err, "reading prior claim id")
		}
		u.Takeovers = append(u.Takeovers, node.TakeoverUndo{
			Name:            name,
			HadPriorClaimID: hadPrior != 0,
			PriorHeight:     priorHeight,
			PriorClaimID:    priorID,
		})
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return u, err
		}
		var claimID change.ClaimID
		if _, err := io.ReadFull(r, claimID[:]); err != nil {
			return u, errors.Wrap(err, "reading claim create id")
		}
		var op wire.OutPoint
		if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
			return u, errors.Wrap(err, "reading claim create outpoint hash")
		}
		if op.Index, err = readUint32(r); err != nil {
			return u, err
		}
		u.ClaimCreates = append(u.ClaimCreates, node.ClaimCreateUndo{Name: name, ClaimID: claimID, OutPoint: op})
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return u, err
		}
		var op wire.OutPoint
		if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
			return u, errors.Wrap(err, "reading support create outpoint hash")
		}
		if op.Index, err = readUint32(r); err != nil {
			return u, err
		}
		u.SupportCreates = append(u.SupportCreates, node.SupportCreateUndo{Name: name, OutPoint: op})
	}

	if n, err = readInt32(r); err != nil {
		return u, err
	}
	for i := int32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return u, err
		}
		prior, err := readClaim(r)
		if err != nil {
			return u, err
		}
		u.ClaimUpdates = append(u.ClaimUpdates, node.ClaimUpdateUndo{Name: name, Prior: prior})
	}

	return u, nil
}

func writeInsert(buf *bytes.Buffer, r node.InsertUndo) {
	writeBytes(buf, r.Name)
	buf.Write(r.OutPoint.Hash[:])
	writeUint32(buf, r.OutPoint.Index)
	writeInt32(buf, r.PriorValidHeight)
}

func readInsert(r *bytes.Reader) (node.InsertUndo, error) {
	var rec node.InsertUndo
	var err error
	if rec.Name, err = readBytes(r); err != nil {
		return rec, err
	}
	if _, err := io.ReadFull(r, rec.OutPoint.Hash[:]); err != nil {
		return rec, errors.Wrap(err, "reading outpoint hash")
	}
	if rec.OutPoint.Index, err = readUint32(r); err != nil {
		return rec, err
	}
	if rec.PriorValidHeight, err = readInt32(r); err != nil {
		return rec, err
	}
	return rec, nil
}

func writeClaim(buf *bytes.Buffer, c node.Claim) {
	buf.Write(c.ClaimID[:])
	buf.Write(c.OutPoint.Hash[:])
	writeUint32(buf, c.OutPoint.Index)
	writeInt64(buf, c.Amount)
	writeInt32(buf, c.BlockHeight)
	writeInt32(buf, c.ValidHeight)
	writeInt32(buf, c.ExpirationHeight)
	writeBytes(buf, c.Metadata)
}

func readClaim(r *bytes.Reader) (node.Claim, error) {
	var c node.Claim
	var err error
	if _, err = io.ReadFull(r, c.ClaimID[:]); err != nil {
		return c, errors.Wrap(err, "reading claim id")
	}
	if _, err = io.ReadFull(r, c.OutPoint.Hash[:]); err != nil {
		return c, errors.Wrap(err, "reading outpoint hash")
	}
	if c.OutPoint.Index, err = readUint32(r); err != nil {
		return c, err
	}
	if c.Amount, err = readInt64(r); err != nil {
		return c, err
	}
	if c.BlockHeight, err = readInt32(r); err != nil {
		return c, err
	}
	if c.ValidHeight, err = readInt32(r); err != nil {
		return c, err
	}
	if c.ExpirationHeight, err = readInt32(r); err != nil {
		return c, err
	}
	if c.Metadata, err = readBytes(r); err != nil {
		return c, err
	}
	return c, nil
}

func writeSupport(buf *bytes.Buffer, s node.Support) {
	buf.Write(s.SupportedClaimID[:])
	buf.Write(s.OutPoint.Hash[:])
	writeUint32(buf, s.OutPoint.Index)
	writeInt64(buf, s.Amount)
	writeInt32(buf, s.BlockHeight)
	writeInt32(buf, s.ValidHeight)
	writeInt32(buf, s.ExpirationHeight)
	writeBytes(buf, s.Metadata)
}

func readSupport(r *bytes.Reader) (node.Support, error) {
	var s node.Support
	var err error
	if _, err = io.ReadFull(r, s.SupportedClaimID[:]); err != nil {
		return s, errors.Wrap(err, "reading supported claim id")
	}
	if _, err = io.ReadFull(r, s.OutPoint.Hash[:]); err != nil {
		return s, errors.Wrap(err, "reading outpoint hash")
	}
	if s.OutPoint.Index, err = readUint32(r); err != nil {
		return s, err
	}
	if s.Amount, err = readInt64(r); err != nil {
		return s, err
	}
	if s.BlockHeight, err = readInt32(r); err != nil {
		return s, err
	}
	if s.ValidHeight, err = readInt32(r); err != nil {
		return s, err
	}
	if s.ExpirationHeight, err = readInt32(r); err != nil {
		return s, err
	}
	if s.Metadata, err = readBytes(r); err != nil {
		return s, err
	}
	return s, nil
}

func writeInt32(buf *bytes.Buffer, v int32) { writeUint32(buf, uint32(v)) }
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
