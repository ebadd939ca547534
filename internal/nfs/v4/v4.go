// Package v4 implements the NFSv4.1 (RFC 5661/8881, minor version 1) session
// engine: COMPOUND request/reply framing, the EXCHANGE_ID/CREATE_SESSION
// handshake, the SEQUENCE-guarded slot table, and the per-operation argument
// and result codecs needed to drive LOOKUP/READ/WRITE/OPEN/CLOSE and the
// other operations the façade composes into COMPOUND sequences.
//
// v4.1 has no MOUNT protocol and no per-version attribute struct the way
// v2/v3 do; PUTROOTFH plus LOOKUP replace MOUNT, and GETATTR's bitmap4
// selection replaces the fixed fattr3 wire shape.
package v4

// Program is the NFS RPC program number, shared with v2/v3.
const Program uint32 = 100003

// Version is the NFS program version for NFSv4 (minor version is carried in
// the COMPOUND request itself, not the RPC version field).
const Version uint32 = 4

// MinorVersion is the only minor version this client speaks.
const MinorVersion uint32 = 1

// Procedure numbers (RFC 5661 Section 17): NFSv4 collapses every operation
// into a single COMPOUND procedure; NULL remains for connectivity checks.
const (
	ProcNull     uint32 = 0
	ProcCompound uint32 = 1
)

// Operation numbers (nfs_opnum4, RFC 8881 Section 18) used by this client.
// Only the operations the façade actually composes into a COMPOUND are
// named; the server-side handler set in the retrieval pack implements many
// more (LOCK, DELEGRETURN, layouts, …) that this client never issues.
const (
	OpAccess       uint32 = 3
	OpClose        uint32 = 4
	OpCommit       uint32 = 5
	OpCreate       uint32 = 6
	OpGetAttr      uint32 = 9
	OpGetFH        uint32 = 10
	OpLink         uint32 = 11
	OpLookup       uint32 = 15
	OpOpen         uint32 = 18
	OpPutFH        uint32 = 22
	OpPutRootFH    uint32 = 24
	OpRead         uint32 = 25
	OpReadDir      uint32 = 26
	OpReadLink     uint32 = 27
	OpRemove       uint32 = 28
	OpRename       uint32 = 29
	OpRestoreFH    uint32 = 31
	OpSaveFH       uint32 = 32
	OpSetAttr      uint32 = 34
	OpWrite        uint32 = 38

	// v4.1 operations (RFC 8881 Section 18.35-18.51), op numbers 40-58.
	OpExchangeID      uint32 = 42
	OpCreateSession   uint32 = 43
	OpDestroySession  uint32 = 44
	OpSequence        uint32 = 53
	OpDestroyClientID uint32 = 57
	OpReclaimComplete uint32 = 58
)

// Status is the v4 nfsstat4 wire status code.
type Status uint32

// nfsstat4 values this client needs to recognize explicitly (RFC 8881
// Section 15.1); the rest are surfaced as Unknown by pkg/nfserrors.
const (
	StatusOK               Status = 0
	StatusErrPerm          Status = 1
	StatusErrNoEnt         Status = 2
	StatusErrIO            Status = 5
	StatusErrAccess        Status = 13
	StatusErrExist         Status = 17
	StatusErrNotDir        Status = 20
	StatusErrIsDir         Status = 21
	StatusErrInval         Status = 22
	StatusErrFbig          Status = 27
	StatusErrNoSpc         Status = 28
	StatusErrRofs          Status = 30
	StatusErrNameTooLong   Status = 63
	StatusErrNotEmpty      Status = 66
	StatusErrDquot         Status = 69
	StatusErrStale         Status = 70
	StatusErrBadHandle     Status = 10001
	StatusErrNotSupp       Status = 10004
	StatusErrServerFault   Status = 10006
	StatusErrDelay         Status = 10008
	StatusErrGrace         Status = 10013
	StatusErrFhExpired     Status = 10014
	StatusErrBadStateid    Status = 10025
	StatusErrBadSeqid      Status = 10026
	StatusErrBadSlot       Status = 10091
	StatusErrSeqMisordered Status = 10063
)

func (s Status) OK() bool { return s == StatusOK }

func (s Status) Error() string { return s.String() }

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "NFS4_OK"
	case StatusErrPerm:
		return "NFS4ERR_PERM"
	case StatusErrNoEnt:
		return "NFS4ERR_NOENT"
	case StatusErrIO:
		return "NFS4ERR_IO"
	case StatusErrAccess:
		return "NFS4ERR_ACCESS"
	case StatusErrExist:
		return "NFS4ERR_EXIST"
	case StatusErrNotDir:
		return "NFS4ERR_NOTDIR"
	case StatusErrIsDir:
		return "NFS4ERR_ISDIR"
	case StatusErrInval:
		return "NFS4ERR_INVAL"
	case StatusErrFbig:
		return "NFS4ERR_FBIG"
	case StatusErrNoSpc:
		return "NFS4ERR_NOSPC"
	case StatusErrRofs:
		return "NFS4ERR_ROFS"
	case StatusErrNameTooLong:
		return "NFS4ERR_NAMETOOLONG"
	case StatusErrNotEmpty:
		return "NFS4ERR_NOTEMPTY"
	case StatusErrDquot:
		return "NFS4ERR_DQUOT"
	case StatusErrStale:
		return "NFS4ERR_STALE"
	case StatusErrBadHandle:
		return "NFS4ERR_BADHANDLE"
	case StatusErrNotSupp:
		return "NFS4ERR_NOTSUPP"
	case StatusErrServerFault:
		return "NFS4ERR_SERVERFAULT"
	case StatusErrDelay:
		return "NFS4ERR_DELAY"
	case StatusErrGrace:
		return "NFS4ERR_GRACE"
	case StatusErrFhExpired:
		return "NFS4ERR_FHEXPIRED"
	case StatusErrBadStateid:
		return "NFS4ERR_BAD_STATEID"
	case StatusErrBadSeqid:
		return "NFS4ERR_BAD_SEQID"
	case StatusErrBadSlot:
		return "NFS4ERR_BADSLOT"
	case StatusErrSeqMisordered:
		return "NFS4ERR_SEQ_MISORDERED"
	default:
		return "unknown NFS4 status"
	}
}

// Create modes (createmode4, RFC 8881 Section 18.16).
const (
	CreateUnchecked uint32 = 0
	CreateGuarded   uint32 = 1
	CreateExclusive uint32 = 2
)

// OPEN share access/deny (RFC 8881 Section 18.16).
const (
	ShareAccessRead  uint32 = 0x01
	ShareAccessWrite uint32 = 0x02
	ShareAccessBoth  uint32 = 0x03
	ShareDenyNone    uint32 = 0x00
)

// OPEN claim/opentype (RFC 8881 Section 18.16). ClaimFH is new to 4.1: it
// claims the filehandle already set by PUTFH directly, with no component
// name, which is what lets Read/Write open an already-resolved handle
// without re-walking a LOOKUP chain to find its parent directory.
const (
	ClaimNull    uint32 = 0
	ClaimFH      uint32 = 4
	OpenNoCreate uint32 = 0
	OpenCreate   uint32 = 1
)

// Write stability levels (stable_how4).
const (
	Unstable  uint32 = 0
	DataSync  uint32 = 1
	FileSync  uint32 = 2
)

const (
	sessionIDSize  = 16
	stateOtherSize = 12
	maxFHSize      = 128
	maxCompoundOps = 64
)
