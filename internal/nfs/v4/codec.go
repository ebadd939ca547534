package v4

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfsclient/internal/xdr"
)

// SessionID is the fixed 16-byte opaque sessionid4 (RFC 8881 Section 2.10.3).
type SessionID [sessionIDSize]byte

func encodeSessionID(buf *bytes.Buffer, id SessionID) error {
	_, err := buf.Write(id[:])
	return err
}

func decodeSessionID(r io.Reader) (SessionID, error) {
	var id SessionID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return id, fmt.Errorf("v4: decode sessionid: %w", err)
	}
	return id, nil
}

// Stateid is the stateid4 wire structure (RFC 8881 Section 2.5): a sequence
// number plus a 12-byte server-opaque identifier. The OPEN reply's stateid
// must be echoed on every subsequent READ/WRITE/CLOSE against that file.
type Stateid struct {
	Seqid uint32
	Other [stateOtherSize]byte
}

// AnonymousStateid is the all-zero stateid used for stateless operations
// issued without a prior OPEN. This client sends it with SETATTR; its
// READ/WRITE path opens the file first and uses the OPEN's stateid.
var AnonymousStateid = Stateid{}

func encodeStateid(buf *bytes.Buffer, s Stateid) error {
	if err := xdr.WriteUint32(buf, s.Seqid); err != nil {
		return err
	}
	_, err := buf.Write(s.Other[:])
	return err
}

func decodeStateid(r io.Reader) (Stateid, error) {
	var s Stateid
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return s, fmt.Errorf("v4: decode stateid seqid: %w", err)
	}
	s.Seqid = seqid
	if _, err := io.ReadFull(r, s.Other[:]); err != nil {
		return s, fmt.Errorf("v4: decode stateid other: %w", err)
	}
	return s, nil
}

// ClientOwner is client_owner4 (RFC 8881 Section 18.35): a client-chosen
// verifier plus an opaque identifier distinguishing this client instance.
type ClientOwner struct {
	Verifier [8]byte
	OwnerID  []byte
}

func (c ClientOwner) encode(buf *bytes.Buffer) error {
	if _, err := buf.Write(c.Verifier[:]); err != nil {
		return err
	}
	return xdr.WriteXDROpaque(buf, c.OwnerID)
}

// ChannelAttrs is channel_attrs4 (RFC 8881 Section 18.36), negotiated for
// both the fore and back channel at CREATE_SESSION.
type ChannelAttrs struct {
	HeaderPadSize         uint32
	MaxRequestSize        uint32
	MaxResponseSize       uint32
	MaxResponseSizeCached uint32
	MaxOperations         uint32
	MaxRequests           uint32
}

func (c ChannelAttrs) encode(buf *bytes.Buffer) error {
	for _, v := range []uint32{
		c.HeaderPadSize, c.MaxRequestSize, c.MaxResponseSize,
		c.MaxResponseSizeCached, c.MaxOperations, c.MaxRequests,
	} {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return err
		}
	}
	// ca_rdma_ird<1>: always empty, this client never negotiates RDMA.
	return xdr.WriteUint32(buf, 0)
}

func decodeChannelAttrs(r io.Reader) (ChannelAttrs, error) {
	var c ChannelAttrs
	fields := []*uint32{
		&c.HeaderPadSize, &c.MaxRequestSize, &c.MaxResponseSize,
		&c.MaxResponseSizeCached, &c.MaxOperations, &c.MaxRequests,
	}
	for _, f := range fields {
		v, err := xdr.DecodeUint32(r)
		if err != nil {
			return c, fmt.Errorf("v4: decode channel_attrs: %w", err)
		}
		*f = v
	}
	if _, err := xdr.DecodeArray(r, 1, func(int) error {
		_, err := xdr.DecodeUint32(r)
		return err
	}); err != nil {
		return c, fmt.Errorf("v4: decode channel_attrs rdma_ird: %w", err)
	}
	return c, nil
}

// FileAttributes is the subset of the NFSv4 fattr4 bitmap-selected
// attribute set this client requests: TYPE, SIZE, MODE, NUMLINKS, OWNER,
// OWNER_GROUP, FILEID, TIME_ACCESS, TIME_MODIFY, TIME_METADATA. The v4
// attribute model is a server-chosen subset of a requested bitmap rather
// than the v2/v3 fixed fattr struct, so decoding walks the bitmap rather
// than a fixed field list.
type FileAttributes struct {
	Type    uint32
	Size    uint64
	Mode    uint32
	NumLinks uint32
	Owner   string
	Group   string
	FileID  uint64
	ATime   NFSTime
	MTime   NFSTime
	CTime   NFSTime
}

// NFSTime is nfstime4: signed seconds since the epoch plus nanoseconds.
type NFSTime struct {
	Seconds int64
	Nseconds uint32
}

// Bitmap4 attribute numbers this client requests and decodes (RFC 8881
// Section 5.8); only the ones FileAttributes carries are listed.
const (
	AttrType       = 1
	AttrSize       = 4
	AttrFileID     = 20
	AttrMode       = 33
	AttrNumLinks   = 35
	AttrOwner      = 36
	AttrOwnerGroup = 37
	AttrTimeAccess = 47
	AttrTimeMetadata = 52
	AttrTimeModify = 53
)

// RequestedAttrBitmap is the two-word bitmap4 this client sends on every
// GETATTR, selecting exactly the attributes FileAttributes models.
func RequestedAttrBitmap() []uint32 {
	bits := [2]uint32{}
	set := func(attr int) {
		bits[attr/32] |= 1 << uint(attr%32)
	}
	set(AttrType)
	set(AttrSize)
	set(AttrFileID)
	set(AttrMode)
	set(AttrNumLinks)
	set(AttrOwner)
	set(AttrOwnerGroup)
	set(AttrTimeAccess)
	set(AttrTimeMetadata)
	set(AttrTimeModify)
	return bits[:]
}

func encodeBitmap(buf *bytes.Buffer, bits []uint32) error {
	if err := xdr.WriteUint32(buf, uint32(len(bits))); err != nil {
		return err
	}
	for _, w := range bits {
		if err := xdr.WriteUint32(buf, w); err != nil {
			return err
		}
	}
	return nil
}

func decodeBitmap(r io.Reader) ([]uint32, error) {
	var words []uint32
	if _, err := xdr.DecodeArray(r, 8, func(int) error {
		w, err := xdr.DecodeUint32(r)
		if err != nil {
			return err
		}
		words = append(words, w)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("v4: decode bitmap: %w", err)
	}
	return words, nil
}

func bitmapHas(bits []uint32, attr int) bool {
	word := attr / 32
	if word >= len(bits) {
		return false
	}
	return bits[word]&(1<<uint(attr%32)) != 0
}

// decodeFattr4 decodes an fattr4: the server's response bitmap followed by
// an opaque blob holding the values for every attribute the bitmap names,
// in ascending attribute-number order (RFC 8881 Section 3.3.5). Only the
// attributes this client ever requests are parsed; anything else present
// (a considerate server never adds unrequested attributes, but a hostile
// or buggy one might) would desynchronize the reader, so the ascending
// walk here must track exactly RequestedAttrBitmap's members.
func decodeFattr4(r io.Reader) (*FileAttributes, error) {
	bits, err := decodeBitmap(r)
	if err != nil {
		return nil, err
	}
	blob, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, fmt.Errorf("v4: decode fattr4 attr_vals: %w", err)
	}

	br := bytes.NewReader(blob)
	attrs := &FileAttributes{}

	if bitmapHas(bits, AttrType) {
		v, err := xdr.DecodeUint32(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode type: %w", err)
		}
		attrs.Type = v
	}
	if bitmapHas(bits, AttrSize) {
		v, err := xdr.DecodeUint64(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode size: %w", err)
		}
		attrs.Size = v
	}
	if bitmapHas(bits, AttrFileID) {
		v, err := xdr.DecodeUint64(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode fileid: %w", err)
		}
		attrs.FileID = v
	}
	if bitmapHas(bits, AttrMode) {
		v, err := xdr.DecodeUint32(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode mode: %w", err)
		}
		attrs.Mode = v
	}
	if bitmapHas(bits, AttrNumLinks) {
		v, err := xdr.DecodeUint32(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode numlinks: %w", err)
		}
		attrs.NumLinks = v
	}
	if bitmapHas(bits, AttrOwner) {
		v, err := xdr.DecodeString(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode owner: %w", err)
		}
		attrs.Owner = v
	}
	if bitmapHas(bits, AttrOwnerGroup) {
		v, err := xdr.DecodeString(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode owner_group: %w", err)
		}
		attrs.Group = v
	}
	if bitmapHas(bits, AttrTimeAccess) {
		t, err := decodeNFSTime(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode time_access: %w", err)
		}
		attrs.ATime = t
	}
	if bitmapHas(bits, AttrTimeMetadata) {
		t, err := decodeNFSTime(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode time_metadata: %w", err)
		}
		attrs.CTime = t
	}
	if bitmapHas(bits, AttrTimeModify) {
		t, err := decodeNFSTime(br)
		if err != nil {
			return nil, fmt.Errorf("v4: decode time_modify: %w", err)
		}
		attrs.MTime = t
	}

	return attrs, nil
}

func decodeNFSTime(r io.Reader) (NFSTime, error) {
	seconds, err := xdr.DecodeInt64(r)
	if err != nil {
		return NFSTime{}, err
	}
	nseconds, err := xdr.DecodeUint32(r)
	if err != nil {
		return NFSTime{}, err
	}
	return NFSTime{Seconds: seconds, Nseconds: nseconds}, nil
}
