package nfs3

// NFSv3 procedure numbers (RFC 1813 Section 3).
const (
	ProcNull        = 0
	ProcGetAttr     = 1
	ProcSetAttr     = 2
	ProcLookup      = 3
	ProcAccess      = 4
	ProcReadLink    = 5
	ProcRead        = 6
	ProcWrite       = 7
	ProcCreate      = 8
	ProcMkdir       = 9
	ProcSymlink     = 10
	ProcMknod       = 11
	ProcRemove      = 12
	ProcRmdir       = 13
	ProcRename      = 14
	ProcLink        = 15
	ProcReadDir     = 16
	ProcReadDirPlus = 17
	ProcFsStat      = 18
	ProcFsInfo      = 19
	ProcPathConf    = 20
	ProcCommit      = 21
)

// NFS status codes (RFC 1813 Section 3.3).
const (
	OK             = 0
	ErrPerm        = 1
	ErrNoEnt       = 2
	ErrIO          = 5
	ErrNxIO        = 6
	ErrAcces       = 13
	ErrExist       = 17
	ErrXDev        = 18
	ErrNoDev       = 19
	ErrNotDir      = 20
	ErrIsDir       = 21
	ErrInval       = 22
	ErrFBig        = 27
	ErrNoSpc       = 28
	ErrRofs        = 30
	ErrMLink       = 31
	ErrNameTooLong = 63
	ErrNotEmpty    = 66
	ErrDQuot       = 69
	ErrStale       = 70
	ErrRemote      = 71
	ErrBadHandle   = 10001
	ErrNotSync     = 10002
	ErrBadCookie   = 10003
	ErrNotSupp     = 10004
	ErrTooSmall    = 10005
	ErrServerFault = 10006
	ErrBadType     = 10007
	ErrJukebox     = 10008
)

// File type constants (RFC 1813 Section 2.5.5).
const (
	FileTypeRegular   = 1
	FileTypeDirectory = 2
	FileTypeBlock     = 3
	FileTypeChar      = 4
	FileTypeSymlink   = 5
	FileTypeSocket    = 6
	FileTypeFifo      = 7
)

// ACCESS bits (RFC 1813 Section 3.3.4).
const (
	AccessRead    = 0x0001
	AccessLookup  = 0x0002
	AccessModify  = 0x0004
	AccessExtend  = 0x0008
	AccessDelete  = 0x0010
	AccessExecute = 0x0020
)

// Write stability modes (RFC 1813 Section 3.3.7).
const (
	WriteUnstable = 0
	WriteDataSync = 1
	WriteFileSync = 2
)

// CREATE modes (RFC 1813 Section 3.3.8).
const (
	CreateUnchecked = 0
	CreateGuarded   = 1
	CreateExclusive = 2
)

// FSINFO property flags (RFC 1813 Section 3.3.19).
const (
	FSFLink        = 0x0001
	FSFSymlink     = 0x0002
	FSFHomogeneous = 0x0008
	FSFCanSetTime  = 0x0010
)

// MaxHandleLength is the RFC 1813 cap on an nfs_fh3's opaque body.
const MaxHandleLength = 64

// DefaultTransferSize is used when FSINFO could not be retrieved or
// failed, matching the documented 8192-byte fallback.
const DefaultTransferSize = 8192
