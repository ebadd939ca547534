package v4

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/marmos91/nfsclient/internal/rpc"
	"github.com/marmos91/nfsclient/internal/xdr"
)

// Client drives one NFSv4.1 session over a single transport. Unlike the
// v2/v3 engines, a v4.1 Client is stateful beyond the file handle: it holds
// the negotiated session and, per the façade's CompleteIo semantic, at most
// one currently-open file.
type Client struct {
	transport rpc.Transport
	xids      *rpc.XIDGenerator
	auth      rpc.OpaqueAuth

	mu          sync.Mutex
	session     *Session
	rootHandle  []byte
	currentOpen *openFile
}

// openFile tracks the file this connection currently holds a v4.1 open
// state for. Opening a different path closes the prior one automatically
// (RFC 5661's model requires an explicit CLOSE per OPEN; the façade never
// exposes bare open/close, only whole Read/Write/Create operations, so the
// engine manages this transition on the caller's behalf).
type openFile struct {
	handle  []byte
	stateid Stateid
}

// New wraps an already-connected transport; Connect must be called before
// any other operation to establish the client id and session.
func New(transport rpc.Transport, auth rpc.OpaqueAuth) *Client {
	return &Client{
		transport: transport,
		xids:      rpc.NewXIDGenerator(),
		auth:      auth,
	}
}

// call issues one COMPOUND RPC and returns its parsed reply cursor.
func (c *Client) call(ctx context.Context, ops []compoundOp) (*compoundReply, error) {
	xid := c.xids.Next()
	header := rpc.CallHeader{
		XID:       xid,
		Program:   Program,
		Version:   Version,
		Procedure: ProcCompound,
		Cred:      c.auth,
		Verf:      rpc.NullAuth,
	}
	buf, err := rpc.EncodeCall(header)
	if err != nil {
		return nil, fmt.Errorf("nfsv4: encode call header: %w", err)
	}
	if err := encodeCompound(buf, ops); err != nil {
		return nil, err
	}

	reply, body, err := c.transport.Call(ctx, xid, Program, Version, ProcCompound, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if err := reply.AsError(); err != nil {
		return nil, fmt.Errorf("nfsv4: %w", err)
	}
	return decodeCompoundReply(body)
}

// sequencedCall prepends SEQUENCE to ops, reserving a slot from the
// session's table, issues the COMPOUND, and releases the slot regardless of
// outcome. A BADSLOT/BAD_SEQID reply invalidates the session per spec;
// the caller learns this via the returned error and must reconnect.
func (c *Client) sequencedCall(ctx context.Context, ops []compoundOp) (*compoundReply, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, fmt.Errorf("nfsv4: not connected")
	}

	s, err := session.slots.reserve(ctx)
	if err != nil {
		return nil, fmt.Errorf("nfsv4: reserve slot: %w", err)
	}
	defer session.slots.release(s)

	seqArgs := sequenceArgs{
		SessionID:     session.ID,
		SequenceID:    s.sequenceID,
		SlotID:        s.id,
		HighestSlotID: session.slots.highestSlot(),
	}
	full := append([]compoundOp{{code: OpSequence, encode: seqArgs.encode}}, ops...)

	reply, err := c.call(ctx, full)
	if err != nil {
		return nil, err
	}

	opcode, status, err := reply.next()
	if err != nil {
		return nil, err
	}
	if opcode != OpSequence {
		return nil, fmt.Errorf("nfsv4: expected SEQUENCE result, got op %d", opcode)
	}
	if !status.OK() {
		if status == StatusErrBadSlot || status == StatusErrBadSeqid {
			c.mu.Lock()
			c.session = nil
			c.mu.Unlock()
		}
		return nil, status
	}
	// sr_sessionid, sr_sequenceid, sr_slotid, sr_highest_slotid,
	// sr_target_highest_slotid, sr_status_flags — consumed, not needed.
	if _, err := decodeSessionID(reply.reader()); err != nil {
		return nil, err
	}
	for i := 0; i < 5; i++ {
		if _, err := xdr.DecodeUint32(reply.reader()); err != nil {
			return nil, err
		}
	}

	return reply, nil
}

type sequenceArgs struct {
	SessionID     SessionID
	SequenceID    uint32
	SlotID        uint32
	HighestSlotID uint32
}

func (a sequenceArgs) encode(buf *bytes.Buffer) error {
	if err := encodeSessionID(buf, a.SessionID); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.SequenceID); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.SlotID); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.HighestSlotID); err != nil {
		return err
	}
	return xdr.WriteBool(buf, false) // sa_cachethis: this client never replays cached compounds.
}

// Connect performs EXCHANGE_ID -> CREATE_SESSION -> RECLAIM_COMPLETE,
// establishing the client id and session this Client's operations depend
// on (spec §4.5's Connect sequence).
func (c *Client) Connect(ctx context.Context, ownerID string) error {
	clientID, _, err := c.exchangeID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("nfsv4: EXCHANGE_ID: %w", err)
	}

	session, err := c.createSession(ctx, clientID)
	if err != nil {
		return fmt.Errorf("nfsv4: CREATE_SESSION: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	if err := c.reclaimComplete(ctx); err != nil {
		return fmt.Errorf("nfsv4: RECLAIM_COMPLETE: %w", err)
	}
	return nil
}

func (c *Client) exchangeID(ctx context.Context, ownerID string) (clientID uint64, sequenceID uint32, err error) {
	owner := ClientOwner{OwnerID: []byte(ownerID)}
	args := exchangeIDArgs{ClientOwner: owner}

	reply, err := c.call(ctx, []compoundOp{{code: OpExchangeID, encode: args.encode}})
	if err != nil {
		return 0, 0, err
	}
	opcode, status, err := reply.next()
	if err != nil {
		return 0, 0, err
	}
	if opcode != OpExchangeID {
		return 0, 0, fmt.Errorf("nfsv4: expected EXCHANGE_ID result, got op %d", opcode)
	}
	if !status.OK() {
		return 0, 0, status
	}

	return decodeExchangeIDResult(reply.reader())
}

type exchangeIDArgs struct {
	ClientOwner ClientOwner
}

func (a exchangeIDArgs) encode(buf *bytes.Buffer) error {
	if err := a.ClientOwner.encode(buf); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, 0); err != nil { // eia_flags: no special behavior requested.
		return err
	}
	if err := xdr.WriteUint32(buf, 0); err != nil { // eia_state_protect.how = SP4_NONE.
		return err
	}
	return xdr.WriteUint32(buf, 0) // eia_client_impl_id<1>: empty.
}

func decodeExchangeIDResult(r *bytes.Reader) (clientID uint64, sequenceID uint32, err error) {
	clientID, err = xdr.DecodeUint64(r)
	if err != nil {
		return 0, 0, fmt.Errorf("nfsv4: decode eir_clientid: %w", err)
	}
	sequenceID, err = xdr.DecodeUint32(r)
	if err != nil {
		return 0, 0, fmt.Errorf("nfsv4: decode eir_sequenceid: %w", err)
	}
	if _, err = xdr.DecodeUint32(r); err != nil { // eir_flags
		return 0, 0, err
	}
	if _, err = xdr.DecodeUint32(r); err != nil { // eir_state_protect.how
		return 0, 0, err
	}
	if _, err = xdr.DecodeUint64(r); err != nil { // eir_server_owner.so_minor_id
		return 0, 0, err
	}
	if _, err = xdr.DecodeOpaque(r); err != nil { // eir_server_owner.so_major_id
		return 0, 0, err
	}
	if _, err = xdr.DecodeOpaque(r); err != nil { // eir_server_scope
		return 0, 0, err
	}
	if _, err = xdr.DecodeArray(r, 1, func(int) error { // eir_server_impl_id<1>
		if _, err := xdr.DecodeString(r); err != nil {
			return err
		}
		if _, err := xdr.DecodeString(r); err != nil {
			return err
		}
		if _, err := xdr.DecodeInt64(r); err != nil {
			return err
		}
		_, err := xdr.DecodeUint32(r)
		return err
	}); err != nil {
		return 0, 0, err
	}
	return clientID, sequenceID, nil
}

// defaultChannelAttrs requests modest, universally-acceptable channel
// parameters; a real deployment would size these from config.MaxPoolSize
// and the negotiated block size, but any server must accept these minimums.
func defaultChannelAttrs() ChannelAttrs {
	return ChannelAttrs{
		HeaderPadSize:         0,
		MaxRequestSize:        1048576,
		MaxResponseSize:       1048576,
		MaxResponseSizeCached: 8192,
		MaxOperations:         8,
		MaxRequests:           16,
	}
}

func (c *Client) createSession(ctx context.Context, clientID uint64) (*Session, error) {
	args := createSessionArgs{
		ClientID:         clientID,
		SequenceID:       1,
		ForeChannelAttrs: defaultChannelAttrs(),
		BackChannelAttrs: defaultChannelAttrs(),
	}

	reply, err := c.call(ctx, []compoundOp{{code: OpCreateSession, encode: args.encode}})
	if err != nil {
		return nil, err
	}
	opcode, status, err := reply.next()
	if err != nil {
		return nil, err
	}
	if opcode != OpCreateSession {
		return nil, fmt.Errorf("nfsv4: expected CREATE_SESSION result, got op %d", opcode)
	}
	if !status.OK() {
		return nil, status
	}

	sessionID, err := decodeSessionID(reply.reader())
	if err != nil {
		return nil, err
	}
	if _, err := xdr.DecodeUint32(reply.reader()); err != nil { // csr_sequence
		return nil, err
	}
	if _, err := xdr.DecodeUint32(reply.reader()); err != nil { // csr_flags
		return nil, err
	}
	foreAttrs, err := decodeChannelAttrs(reply.reader())
	if err != nil {
		return nil, err
	}
	if _, err := decodeChannelAttrs(reply.reader()); err != nil { // csr_back_chan_attrs
		return nil, err
	}

	width := foreAttrs.MaxRequests
	if width == 0 {
		width = 1
	}
	return &Session{ClientID: clientID, ID: sessionID, slots: newSlotTable(width)}, nil
}

type createSessionArgs struct {
	ClientID         uint64
	SequenceID       uint32
	ForeChannelAttrs ChannelAttrs
	BackChannelAttrs ChannelAttrs
}

func (a createSessionArgs) encode(buf *bytes.Buffer) error {
	if err := xdr.WriteUint64(buf, a.ClientID); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.SequenceID); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, 0); err != nil { // csa_flags
		return err
	}
	if err := a.ForeChannelAttrs.encode(buf); err != nil {
		return err
	}
	if err := a.BackChannelAttrs.encode(buf); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, 0); err != nil { // csa_cb_program: no callback channel used.
		return err
	}
	return xdr.WriteUint32(buf, 0) // csa_sec_parms<>: empty.
}

func (c *Client) reclaimComplete(ctx context.Context) error {
	reply, err := c.sequencedCall(ctx, []compoundOp{{
		code: OpReclaimComplete,
		encode: func(buf *bytes.Buffer) error {
			return xdr.WriteBool(buf, false) // rca_one_fs: reclaiming across the whole server.
		},
	}})
	if err != nil {
		return err
	}
	opcode, status, err := reply.next()
	if err != nil {
		return err
	}
	if opcode != OpReclaimComplete {
		return fmt.Errorf("nfsv4: expected RECLAIM_COMPLETE result, got op %d", opcode)
	}
	if !status.OK() {
		return status
	}
	return nil
}

// SetRoot records the root file handle obtained via PUTROOTFH on first use;
// v4.1 has no MOUNT protocol, so the façade resolves the export path itself
// through ordinary LOOKUPs starting from the pseudo-root.
func (c *Client) SetRoot(handle []byte) {
	c.mu.Lock()
	c.rootHandle = handle
	c.mu.Unlock()
}

// splitPath turns a canonical "."-rooted, "\"-separated path into its
// non-root components, matching the façade's path normalization (spec
// §4.4).
func splitPath(path string) []string {
	parts := strings.Split(path, `\`)
	var comps []string
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		comps = append(comps, p)
	}
	return comps
}

func encodePutRootFH(buf *bytes.Buffer) error { return nil }

func encodePutFH(handle []byte) func(buf *bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		return xdr.WriteXDROpaque(buf, handle)
	}
}

func encodeLookup(name string) func(buf *bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		return xdr.WriteXDRString(buf, name)
	}
}

func encodeGetFH(buf *bytes.Buffer) error { return nil }

func encodeGetAttr(buf *bytes.Buffer) error {
	return encodeBitmap(buf, RequestedAttrBitmap())
}

// expectOp reads the next resop and confirms it matches want, returning its
// status (still possibly non-OK; callers decide whether that's fatal).
func expectOp(reply *compoundReply, want uint32) (Status, error) {
	opcode, status, err := reply.next()
	if err != nil {
		return 0, err
	}
	if opcode != want {
		return 0, fmt.Errorf("nfsv4: expected op %d result, got op %d", want, opcode)
	}
	return status, nil
}

// LookupResult is the file handle and attributes a successful path
// resolution returns.
type LookupResult struct {
	Handle []byte
	Attrs  *FileAttributes
}

// LookupPath resolves path from the pseudo-root by issuing PUTROOTFH
// followed by one LOOKUP per component, then GETFH and GETATTR on the
// final component (spec §4.5's LookupPath sequence). An empty path
// resolves the root itself.
func (c *Client) LookupPath(ctx context.Context, path string) (*LookupResult, error) {
	comps := splitPath(path)

	ops := []compoundOp{{code: OpPutRootFH, encode: encodePutRootFH}}
	for _, name := range comps {
		ops = append(ops, compoundOp{code: OpLookup, encode: encodeLookup(name)})
	}
	ops = append(ops,
		compoundOp{code: OpGetFH, encode: encodeGetFH},
		compoundOp{code: OpGetAttr, encode: encodeGetAttr},
	)

	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return nil, err
	}

	if status, err := expectOp(reply, OpPutRootFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	for range comps {
		status, err := expectOp(reply, OpLookup)
		if err != nil {
			return nil, err
		}
		if !status.OK() {
			return nil, status
		}
	}
	if status, err := expectOp(reply, OpGetFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	handle, err := xdr.DecodeOpaque(reply.reader())
	if err != nil {
		return nil, fmt.Errorf("nfsv4: decode GETFH handle: %w", err)
	}

	if status, err := expectOp(reply, OpGetAttr); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	attrs, err := decodeFattr4(reply.reader())
	if err != nil {
		return nil, err
	}

	return &LookupResult{Handle: handle, Attrs: attrs}, nil
}

// DirEntry is one entry returned by ReadDir.
type DirEntry struct {
	Cookie uint64
	Name   string
	FileID uint64
}

// ReadDir lists handle's directory contents via SEQUENCE, PUTFH, READDIR
// (spec §4.5). Results are bounded by maxReaddirEntries to guard against a
// malformed or hostile server sending an unbounded entry list.
const maxReaddirEntries = 8192

func (c *Client) ReadDir(ctx context.Context, handle []byte, cookie uint64, verifier [8]byte) (entries []DirEntry, nextVerifier [8]byte, eof bool, err error) {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpReadDir, encode: func(buf *bytes.Buffer) error {
			if err := xdr.WriteUint64(buf, cookie); err != nil {
				return err
			}
			if _, err := buf.Write(verifier[:]); err != nil {
				return err
			}
			if err := xdr.WriteUint32(buf, 8192); err != nil { // dircount
				return err
			}
			if err := xdr.WriteUint32(buf, 32768); err != nil { // maxcount
				return err
			}
			return encodeBitmap(buf, []uint32{1 << uint(AttrType%32)})
		}},
	}

	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return nil, nextVerifier, false, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return nil, nextVerifier, false, err
	} else if !status.OK() {
		return nil, nextVerifier, false, status
	}
	status, err := expectOp(reply, OpReadDir)
	if err != nil {
		return nil, nextVerifier, false, err
	}
	if !status.OK() {
		return nil, nextVerifier, false, status
	}

	r := reply.reader()
	if _, err := io.ReadFull(r, nextVerifier[:]); err != nil {
		return nil, nextVerifier, false, fmt.Errorf("nfsv4: decode readdir cookieverf: %w", err)
	}

	for i := 0; i < maxReaddirEntries; i++ {
		present, err := xdr.DecodeBool(r)
		if err != nil {
			return nil, nextVerifier, false, fmt.Errorf("nfsv4: decode readdir entry flag: %w", err)
		}
		if !present {
			break
		}
		ck, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, nextVerifier, false, err
		}
		name, err := xdr.DecodeString(r)
		if err != nil {
			return nil, nextVerifier, false, err
		}
		if _, err := decodeFattr4(r); err != nil {
			return nil, nextVerifier, false, err
		}
		entries = append(entries, DirEntry{Cookie: ck, Name: name})
		if i == maxReaddirEntries-1 {
			return entries, nextVerifier, false, fmt.Errorf("nfsv4: readdir exceeds maximum of %d entries", maxReaddirEntries)
		}
	}

	eofFlag, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, nextVerifier, false, fmt.Errorf("nfsv4: decode readdir eof: %w", err)
	}
	return entries, nextVerifier, eofFlag, nil
}

// Read returns up to len bytes from handle at offset (spec §4.5's Read
// sequence: SEQUENCE, PUTFH, READ).
func (c *Client) Read(ctx context.Context, handle []byte, stateid Stateid, offset uint64, length uint32) (data []byte, eof bool, err error) {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpRead, encode: func(buf *bytes.Buffer) error {
			if err := encodeStateid(buf, stateid); err != nil {
				return err
			}
			if err := xdr.WriteUint64(buf, offset); err != nil {
				return err
			}
			return xdr.WriteUint32(buf, length)
		}},
	}

	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return nil, false, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return nil, false, err
	} else if !status.OK() {
		return nil, false, status
	}
	status, err := expectOp(reply, OpRead)
	if err != nil {
		return nil, false, err
	}
	if !status.OK() {
		return nil, false, status
	}

	r := reply.reader()
	eofFlag, err := xdr.DecodeBool(r)
	if err != nil {
		return nil, false, err
	}
	data, err = xdr.DecodeOpaque(r)
	if err != nil {
		return nil, false, err
	}
	return data, eofFlag, nil
}

// Write writes data to handle at offset with the given stability level
// (spec §4.5's Write sequence: SEQUENCE, PUTFH, WRITE).
func (c *Client) Write(ctx context.Context, handle []byte, stateid Stateid, offset uint64, data []byte, stable uint32) (count uint32, err error) {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpWrite, encode: func(buf *bytes.Buffer) error {
			if err := encodeStateid(buf, stateid); err != nil {
				return err
			}
			if err := xdr.WriteUint64(buf, offset); err != nil {
				return err
			}
			if err := xdr.WriteUint32(buf, stable); err != nil {
				return err
			}
			return xdr.WriteXDROpaque(buf, data)
		}},
	}

	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return 0, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return 0, err
	} else if !status.OK() {
		return 0, status
	}
	status, err := expectOp(reply, OpWrite)
	if err != nil {
		return 0, err
	}
	if !status.OK() {
		return 0, status
	}

	r := reply.reader()
	count, err = xdr.DecodeUint32(r)
	if err != nil {
		return 0, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // committed
		return 0, err
	}
	if _, err := xdr.DecodeOpaqueFixed(r, 8); err != nil { // writeverf
		return 0, err
	}
	return count, nil
}

// EnsureOpen returns a stateid valid for I/O against handle, opening it
// with CLAIM_FH if this connection doesn't already hold it open. Since the
// façade only ever drives one handle's worth of chunked Read/Write at a
// time between CompleteIo calls, one open per connection is enough —
// opening a different handle closes whatever was open before it.
func (c *Client) EnsureOpen(ctx context.Context, handle []byte) (Stateid, error) {
	c.mu.Lock()
	if cur := c.currentOpen; cur != nil && bytes.Equal(cur.handle, handle) {
		stateid := cur.stateid
		c.mu.Unlock()
		return stateid, nil
	}
	c.mu.Unlock()

	if err := c.closeCurrentOpen(ctx); err != nil {
		return Stateid{}, err
	}

	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpOpen, encode: encodeOpenExisting(ShareAccessBoth)},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return Stateid{}, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return Stateid{}, err
	} else if !status.OK() {
		return Stateid{}, status
	}
	status, err := expectOp(reply, OpOpen)
	if err != nil {
		return Stateid{}, err
	}
	if !status.OK() {
		return Stateid{}, status
	}
	stateid, err := decodeOpenResult(reply.reader())
	if err != nil {
		return Stateid{}, err
	}

	c.mu.Lock()
	c.currentOpen = &openFile{handle: handle, stateid: stateid}
	c.mu.Unlock()
	return stateid, nil
}

// CompleteIo closes whatever file EnsureOpen currently holds open, per the
// façade's CompleteIo contract: a chunked Read/Write session ends with the
// OPEN it started being closed out.
func (c *Client) CompleteIo(ctx context.Context) error {
	return c.closeCurrentOpen(ctx)
}

// closeCurrentOpen closes whatever file this connection currently holds
// open, if any, implementing the façade's CompleteIo semantic: at most one
// open file per connection, automatically closed before the next open.
func (c *Client) closeCurrentOpen(ctx context.Context) error {
	c.mu.Lock()
	cur := c.currentOpen
	c.currentOpen = nil
	c.mu.Unlock()
	if cur == nil {
		return nil
	}

	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(cur.handle)},
		{code: OpClose, encode: func(buf *bytes.Buffer) error {
			if err := xdr.WriteUint32(buf, cur.stateid.Seqid); err != nil {
				return err
			}
			return encodeStateid(buf, cur.stateid)
		}},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	status, err := expectOp(reply, OpClose)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// CreateFile creates name in the directory handle dirHandle with an
// UNCHECKED4 OPEN (spec §4.5: SEQUENCE, PUTFH, OPEN(create=UNCHECKED4),
// GETFH, CLOSE). Read/Write take an explicit stateid rather than an
// open handle, since the façade above always pairs them with its own
// OPEN/CLOSE bracketing around chunked I/O.
func (c *Client) CreateFile(ctx context.Context, dirHandle []byte, name string) (handle []byte, err error) {
	if err := c.closeCurrentOpen(ctx); err != nil {
		return nil, err
	}

	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(dirHandle)},
		{code: OpOpen, encode: encodeOpenCreate(name)},
		{code: OpGetFH, encode: encodeGetFH},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return nil, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	status, err := expectOp(reply, OpOpen)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, status
	}
	stateid, err := decodeOpenResult(reply.reader())
	if err != nil {
		return nil, err
	}
	if status, err := expectOp(reply, OpGetFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	handle, err = xdr.DecodeOpaque(reply.reader())
	if err != nil {
		return nil, err
	}

	if err := c.closeFileHandle(ctx, handle, stateid); err != nil {
		return nil, err
	}
	return handle, nil
}

func (c *Client) closeFileHandle(ctx context.Context, handle []byte, stateid Stateid) error {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpClose, encode: func(buf *bytes.Buffer) error {
			if err := xdr.WriteUint32(buf, stateid.Seqid); err != nil {
				return err
			}
			return encodeStateid(buf, stateid)
		}},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	status, err := expectOp(reply, OpClose)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// encodeOpenCreate encodes an OPEN4args requesting an UNCHECKED4 create of
// name with read/write share access and CLAIM_NULL (RFC 8881 Section
// 18.16). seqid is always 0: this client never retries an OPEN under the
// same owner without a fresh sequence, so replay detection never engages.
func encodeOpenCreate(name string) func(buf *bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		if err := xdr.WriteUint32(buf, 0); err != nil { // seqid
			return err
		}
		if err := xdr.WriteUint32(buf, ShareAccessBoth); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, ShareDenyNone); err != nil {
			return err
		}
		// open_owner4: a fixed per-process verifier plus an opaque owner id.
		if _, err := buf.Write([]byte("nfscli01")); err != nil {
			return err
		}
		if err := xdr.WriteXDROpaque(buf, []byte("nfsclient-owner")); err != nil {
			return err
		}
		// openflag4: OPEN4_CREATE, createmode4 UNCHECKED4, fattr4 with no
		// attributes set (server applies its own defaults).
		if err := xdr.WriteUint32(buf, OpenCreate); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, CreateUnchecked); err != nil {
			return err
		}
		if err := encodeBitmap(buf, nil); err != nil { // attrs.attrmask: empty
			return err
		}
		if err := xdr.WriteUint32(buf, 0); err != nil { // attrs.attr_vals: empty opaque
			return err
		}
		// open_claim4: CLAIM_NULL, file name.
		if err := xdr.WriteUint32(buf, ClaimNull); err != nil {
			return err
		}
		return xdr.WriteXDRString(buf, name)
	}
}

// encodeOpenExisting encodes an OPEN4args against the filehandle already
// set by a prior PUTFH, using CLAIM_FH (no component name) and no create —
// the non-create counterpart to encodeOpenCreate, used to open a file
// Read/Write already resolved a handle for.
func encodeOpenExisting(access uint32) func(buf *bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		if err := xdr.WriteUint32(buf, 0); err != nil { // seqid
			return err
		}
		if err := xdr.WriteUint32(buf, access); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, ShareDenyNone); err != nil {
			return err
		}
		if _, err := buf.Write([]byte("nfscli01")); err != nil {
			return err
		}
		if err := xdr.WriteXDROpaque(buf, []byte("nfsclient-owner")); err != nil {
			return err
		}
		if err := xdr.WriteUint32(buf, OpenNoCreate); err != nil {
			return err
		}
		// open_claim4: CLAIM_FH, void body — the current filehandle from PUTFH.
		return xdr.WriteUint32(buf, ClaimFH)
	}
}

// decodeOpenResult decodes OPEN4res's common prefix: the stateid, then
// skips change_info4 and consumes the rflags/delegation fields this client
// never acts on (it always closes immediately after create).
func decodeOpenResult(r *bytes.Reader) (Stateid, error) {
	stateid, err := decodeStateid(r)
	if err != nil {
		return Stateid{}, err
	}
	if _, err := xdr.DecodeBool(r); err != nil { // cinfo.atomic
		return Stateid{}, err
	}
	if _, err := xdr.DecodeUint64(r); err != nil { // cinfo.before
		return Stateid{}, err
	}
	if _, err := xdr.DecodeUint64(r); err != nil { // cinfo.after
		return Stateid{}, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // rflags
		return Stateid{}, err
	}
	if _, err := decodeBitmap(r); err != nil { // attrset
		return Stateid{}, err
	}
	// delegation: discriminated union on delegation_type4; OPEN_DELEGATE_NONE
	// (0) has no further body, and this client never requests a delegation
	// so any other value would be a server misbehaving. A non-zero value
	// fails the OPEN with an error, since its body is not decoded.
	discriminant, err := xdr.DecodeUint32(r)
	if err != nil {
		return Stateid{}, err
	}
	if discriminant != 0 {
		return Stateid{}, fmt.Errorf("nfsv4: unexpected delegation type %d", discriminant)
	}
	return stateid, nil
}

// Remove deletes name from the directory handle dirHandle (spec §4.5:
// SEQUENCE, PUTFH, REMOVE).
func (c *Client) Remove(ctx context.Context, dirHandle []byte, name string) error {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(dirHandle)},
		{code: OpRemove, encode: func(buf *bytes.Buffer) error {
			return xdr.WriteXDRString(buf, name)
		}},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	status, err := expectOp(reply, OpRemove)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// Rename moves oldName in oldDirHandle to newName in newDirHandle (spec
// §4.5: SEQUENCE, PUTFH, SAVEFH, PUTFH, RENAME — SAVEFH stashes the source
// directory handle so RENAME can reference both directories, since a
// COMPOUND only ever has one "current" file handle at a time).
func (c *Client) Rename(ctx context.Context, oldDirHandle []byte, oldName string, newDirHandle []byte, newName string) error {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(oldDirHandle)},
		{code: OpSaveFH, encode: func(buf *bytes.Buffer) error { return nil }},
		{code: OpPutFH, encode: encodePutFH(newDirHandle)},
		{code: OpRename, encode: func(buf *bytes.Buffer) error {
			if err := xdr.WriteXDRString(buf, oldName); err != nil {
				return err
			}
			return xdr.WriteXDRString(buf, newName)
		}},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	if status, err := expectOp(reply, OpSaveFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	status, err := expectOp(reply, OpRename)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// SetAttr applies mode and/or size changes to handle (spec §4.5: SEQUENCE,
// PUTFH, SETATTR). Only the attributes named in the bitmap are sent.
func (c *Client) SetAttr(ctx context.Context, handle []byte, mode *uint32, size *uint64) error {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpSetAttr, encode: func(buf *bytes.Buffer) error {
			if err := encodeStateid(buf, AnonymousStateid); err != nil {
				return err
			}

			var bits [2]uint32
			var vals bytes.Buffer
			if size != nil {
				bits[AttrSize/32] |= 1 << uint(AttrSize%32)
				if err := xdr.WriteUint64(&vals, *size); err != nil {
					return err
				}
			}
			if mode != nil {
				bits[AttrMode/32] |= 1 << uint(AttrMode%32)
				if err := xdr.WriteUint32(&vals, *mode); err != nil {
					return err
				}
			}
			if err := encodeBitmap(buf, bits[:]); err != nil {
				return err
			}
			return xdr.WriteXDROpaque(buf, vals.Bytes())
		}},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	status, err := expectOp(reply, OpSetAttr)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// createtype4 discriminants (RFC 8881 Section 18.4) this client issues.
const (
	nf4Dir uint32 = 2
	nf4Lnk uint32 = 5
)

// createNonRegular issues CREATE for a directory or symlink (objType plus
// optional linkdata) followed by GETFH, sharing the same COMPOUND shape
// Mkdir and Symlink both need.
func (c *Client) createNonRegular(ctx context.Context, dirHandle []byte, name string, objType uint32, linkData string) (handle []byte, err error) {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(dirHandle)},
		{code: OpCreate, encode: func(buf *bytes.Buffer) error {
			if err := xdr.WriteUint32(buf, objType); err != nil {
				return err
			}
			if objType == nf4Lnk {
				if err := xdr.WriteXDRString(buf, linkData); err != nil {
					return err
				}
			}
			if err := xdr.WriteXDRString(buf, name); err != nil {
				return err
			}
			if err := encodeBitmap(buf, nil); err != nil { // createattrs.attrmask: empty
				return err
			}
			return xdr.WriteUint32(buf, 0) // createattrs.attr_vals: empty
		}},
		{code: OpGetFH, encode: encodeGetFH},
	}

	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return nil, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	status, err := expectOp(reply, OpCreate)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, status
	}
	// change_info4: consumed, not needed.
	if _, err := xdr.DecodeBool(reply.reader()); err != nil {
		return nil, err
	}
	if _, err := xdr.DecodeUint64(reply.reader()); err != nil {
		return nil, err
	}
	if _, err := xdr.DecodeUint64(reply.reader()); err != nil {
		return nil, err
	}
	if _, err := decodeBitmap(reply.reader()); err != nil { // attrset
		return nil, err
	}
	if status, err := expectOp(reply, OpGetFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	handle, err = xdr.DecodeOpaque(reply.reader())
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Mkdir creates directory name under dirHandle (spec §4.5 supplement:
// SEQUENCE, PUTFH, CREATE(NF4DIR), GETFH).
func (c *Client) Mkdir(ctx context.Context, dirHandle []byte, name string) (handle []byte, err error) {
	return c.createNonRegular(ctx, dirHandle, name, nf4Dir, "")
}

// Symlink creates a symlink named name under dirHandle pointing at target
// (SEQUENCE, PUTFH, CREATE(NF4LNK), GETFH).
func (c *Client) Symlink(ctx context.Context, dirHandle []byte, name, target string) (handle []byte, err error) {
	return c.createNonRegular(ctx, dirHandle, name, nf4Lnk, target)
}

// ReadLink returns the target of the symlink handle (SEQUENCE, PUTFH,
// READLINK).
func (c *Client) ReadLink(ctx context.Context, handle []byte) (target string, err error) {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpReadLink, encode: func(buf *bytes.Buffer) error { return nil }},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return "", err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return "", err
	} else if !status.OK() {
		return "", status
	}
	status, err := expectOp(reply, OpReadLink)
	if err != nil {
		return "", err
	}
	if !status.OK() {
		return "", status
	}
	return xdr.DecodeString(reply.reader())
}

// Link creates a hard link named newName in newDirHandle pointing at
// srcHandle (spec §4.5 supplement: SEQUENCE, PUTFH(src), SAVEFH,
// PUTFH(dir), LINK).
func (c *Client) Link(ctx context.Context, srcHandle []byte, newDirHandle []byte, newName string) error {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(srcHandle)},
		{code: OpSaveFH, encode: func(buf *bytes.Buffer) error { return nil }},
		{code: OpPutFH, encode: encodePutFH(newDirHandle)},
		{code: OpLink, encode: func(buf *bytes.Buffer) error {
			return xdr.WriteXDRString(buf, newName)
		}},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	if status, err := expectOp(reply, OpSaveFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return err
	} else if !status.OK() {
		return status
	}
	status, err := expectOp(reply, OpLink)
	if err != nil {
		return err
	}
	if !status.OK() {
		return status
	}
	return nil
}

// GetAttr fetches handle's attributes directly (SEQUENCE, PUTFH, GETATTR),
// without the LOOKUP chain LookupPath performs. The façade uses this to
// refresh a handle it already holds, e.g. after a cache hit.
func (c *Client) GetAttr(ctx context.Context, handle []byte) (*FileAttributes, error) {
	ops := []compoundOp{
		{code: OpPutFH, encode: encodePutFH(handle)},
		{code: OpGetAttr, encode: encodeGetAttr},
	}
	reply, err := c.sequencedCall(ctx, ops)
	if err != nil {
		return nil, err
	}
	if status, err := expectOp(reply, OpPutFH); err != nil {
		return nil, err
	} else if !status.OK() {
		return nil, status
	}
	status, err := expectOp(reply, OpGetAttr)
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, status
	}
	return decodeFattr4(reply.reader())
}
