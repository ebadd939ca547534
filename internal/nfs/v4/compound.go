package v4

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsclient/internal/xdr"
)

// compoundOp is one entry in a COMPOUND request's argarray: an operation
// number plus a closure that writes that operation's argument body.
type compoundOp struct {
	code    uint32
	encode  func(buf *bytes.Buffer) error
}

// encodeCompound writes a full COMPOUND4args: an empty tag (this client
// never needs server-side request correlation beyond the RPC XID),
// minorversion=1, and the operation array in order.
func encodeCompound(buf *bytes.Buffer, ops []compoundOp) error {
	if err := xdr.WriteXDRString(buf, ""); err != nil {
		return fmt.Errorf("v4: encode compound tag: %w", err)
	}
	if err := xdr.WriteUint32(buf, MinorVersion); err != nil {
		return fmt.Errorf("v4: encode minorversion: %w", err)
	}
	if err := xdr.WriteUint32(buf, uint32(len(ops))); err != nil {
		return fmt.Errorf("v4: encode argarray count: %w", err)
	}
	for i, op := range ops {
		if err := xdr.WriteUint32(buf, op.code); err != nil {
			return fmt.Errorf("v4: encode op[%d] code: %w", i, err)
		}
		if op.encode != nil {
			if err := op.encode(buf); err != nil {
				return fmt.Errorf("v4: encode op[%d] args: %w", i, err)
			}
		}
	}
	return nil
}

// compoundReply is a cursor over a decoded COMPOUND4res: the overall status,
// the echoed tag, and a stream positioned at the start of the first resop.
// Per RFC 8881 Section 15.2, the server stops executing a COMPOUND at the
// first operation that returns a non-NFS4_OK status, so resarray may be
// shorter than argarray; next() reports exactly as many ops as the server
// actually processed.
type compoundReply struct {
	Status Status
	Tag    string
	r      *bytes.Reader
}

// decodeCompoundReply parses the COMPOUND4res header (status, tag, op
// count) from body and returns a cursor for walking resarray.
func decodeCompoundReply(body []byte) (*compoundReply, error) {
	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("v4: decode compound status: %w", err)
	}
	tag, err := xdr.DecodeString(r)
	if err != nil {
		return nil, fmt.Errorf("v4: decode compound tag: %w", err)
	}
	if _, err := xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("v4: decode compound resarray count: %w", err)
	}
	return &compoundReply{Status: Status(status), Tag: tag, r: r}, nil
}

// next decodes the next resop's operation code and status. The caller must
// know, from the COMPOUND sequence it built, which operation this is
// expected to be; on StatusOK the caller decodes that operation's
// op-specific result directly from the returned reader before calling next
// again, since nfs_resop4 bodies are not individually length-prefixed.
func (c *compoundReply) next() (opcode uint32, status Status, err error) {
	opcode, err = xdr.DecodeUint32(c.r)
	if err != nil {
		return 0, 0, fmt.Errorf("v4: decode resop code: %w", err)
	}
	s, err := xdr.DecodeUint32(c.r)
	if err != nil {
		return 0, 0, fmt.Errorf("v4: decode resop status: %w", err)
	}
	return opcode, Status(s), nil
}

func (c *compoundReply) reader() *bytes.Reader { return c.r }
