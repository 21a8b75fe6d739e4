package mountproto

// Program and Version identify the MOUNT service as registered with
// portmap (RFC 1813 Appendix I).
const (
	Program = 100005
	Version = 3
)

// MOUNT procedure numbers.
const (
	ProcNull    = 0
	ProcMnt     = 1
	ProcDump    = 2
	ProcUmnt    = 3
	ProcUmntAll = 4
	ProcExport  = 5
)

// MOUNT status codes (mountstat3, RFC 1813 Appendix I).
const (
	OK             = 0
	ErrPerm        = 1
	ErrNoEnt       = 2
	ErrIO          = 5
	ErrAcces       = 13
	ErrNotDir      = 20
	ErrInval       = 22
	ErrNameTooLong = 63
	ErrNotSupp     = 10004
	ErrServerFault = 10006
)

// MaxHandleLength is the RFC 1813 cap on an fhandle3's opaque body.
const MaxHandleLength = 64
