// Package nfs3 implements the client side of NFS version 3 (RFC 1813):
// request encoding, reply decoding, the nfs_fh3 handle type, and the
// procedure calls this client actually exercises.
package nfs3

// TimeVal is an NFS nfstime3 (RFC 1813 Section 2.5.2): seconds and
// nanoseconds since the Unix epoch.
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// SpecData holds device major/minor numbers (RFC 1813 Section 2.5.5),
// used for block/char special files.
type SpecData struct {
	Major uint32
	Minor uint32
}

// FileAttr is fattr3 (RFC 1813 Section 2.3.1): the complete attribute set
// of a filesystem object.
type FileAttr struct {
	Type   uint32
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Rdev   SpecData
	Fsid   uint64
	Fileid uint64
	Atime  TimeVal
	Mtime  TimeVal
	Ctime  TimeVal
}

// WccAttr is wcc_attr (RFC 1813 Section 2.6): the subset of attributes
// captured before a modifying operation, for weak cache consistency.
type WccAttr struct {
	Size  uint64
	Mtime TimeVal
	Ctime TimeVal
}

// WccData is wcc_data: optional pre-op and post-op attributes bundled
// with most modifying procedure replies.
type WccData struct {
	Before *WccAttr
	After  *FileAttr
}

// DirEntry is an entry3 record from READDIR: no attributes, just name,
// fileid and the opaque resume cookie.
type DirEntry struct {
	Fileid uint64
	Name   string
	Cookie uint64
}

// DirEntryPlus is an entryplus3 record from READDIRPLUS.
type DirEntryPlus struct {
	Fileid uint64
	Name   string
	Cookie uint64
	Attr   *FileAttr
	Handle *Handle
}

// FSStat is the dynamic filesystem information returned by FSSTAT.
type FSStat struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
	AvailFiles uint64
	Invarsec   uint32
}

// FSInfo is the static filesystem information returned by FSINFO.
type FSInfo struct {
	RtMax   uint32
	RtPref  uint32
	RtMult  uint32
	WtMax   uint32
	WtPref  uint32
	WtMult  uint32
	DtPref  uint32
	MaxFBSz uint64
	TimeDelta TimeVal
	Properties uint32
}

// PathConf is the POSIX pathconf information returned by PATHCONF.
type PathConf struct {
	LinkMax      uint32
	NameMax      uint32
	NoTrunc      bool
	ChownRestricted bool
	CaseInsensitive bool
	CasePreserving  bool
}

// TimeGuard implements SETATTR's optional ctime guard (sattrguard3), sent
// after the sattr3 for conditional SETATTR. This client always sends Check=false (unconditional SETATTR),
// per the spec's explicit attribute-mutation design.
type TimeGuard struct {
	Check bool
	Time  TimeVal
}

// SetAttr is the sattr3 discriminated-union structure: every field is
// individually optional ("set it / leave it" semantics).
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime *TimeVal
	Mtime *TimeVal
}
