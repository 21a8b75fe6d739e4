package nfs3

import (
	"bytes"
	"fmt"
)

// Every *Result type below carries the protocol status and, on success,
// whatever payload the procedure defines.

// GetAttrResult is the reply to GETATTR.
type GetAttrResult struct {
	Status uint32
	Attr   *FileAttr
}

func encodeGetAttrArgs(h *Handle) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGetAttrResult(data []byte) (*GetAttrResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &GetAttrResult{Status: status}
	if status == OK {
		if res.Attr, err = decodeFileAttr(r); err != nil {
			return nil, fmt.Errorf("decode getattr attributes: %w", err)
		}
	}
	return res, nil
}

// SetAttrResult is the reply to SETATTR.
type SetAttrResult struct {
	Status uint32
	Wcc    *WccData
}

func encodeSetAttrArgs(h *Handle, sa *SetAttr, guard TimeGuard) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	if err := encodeSetAttr(&buf, sa); err != nil {
		return nil, err
	}
	if err := encodeTimeGuard(&buf, guard); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSetAttrResult(data []byte) (*SetAttrResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	wcc, err := decodeWccData(r)
	if err != nil {
		return nil, fmt.Errorf("decode setattr wcc: %w", err)
	}
	return &SetAttrResult{Status: status, Wcc: wcc}, nil
}

// LookupResult is the reply to LOOKUP.
type LookupResult struct {
	Status     uint32
	Handle     *Handle
	Attr       *FileAttr
	DirAttr    *FileAttr
}

func encodeLookupArgs(dir *Handle, name string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeLookupResult(data []byte) (*LookupResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &LookupResult{Status: status}
	if status == OK {
		if res.Handle, err = decodeHandle(r); err != nil {
			return nil, fmt.Errorf("decode lookup handle: %w", err)
		}
		if res.Attr, err = decodePostOpAttr(r); err != nil {
			return nil, fmt.Errorf("decode lookup object attr: %w", err)
		}
	}
	if res.DirAttr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode lookup dir attr: %w", err)
	}
	return res, nil
}

// AccessResult is the reply to ACCESS.
type AccessResult struct {
	Status uint32
	Attr   *FileAttr
	Access uint32
}

func encodeAccessArgs(h *Handle, bits uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, bits); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAccessResult(data []byte) (*AccessResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &AccessResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode access attr: %w", err)
	}
	if status == OK {
		if err := readUint32(r, &res.Access); err != nil {
			return nil, fmt.Errorf("decode access bits: %w", err)
		}
	}
	return res, nil
}

// ReadLinkResult is the reply to READLINK.
type ReadLinkResult struct {
	Status uint32
	Attr   *FileAttr
	Target string
}

func encodeReadLinkArgs(h *Handle) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeReadLinkResult(data []byte) (*ReadLinkResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &ReadLinkResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode readlink attr: %w", err)
	}
	if status == OK {
		if res.Target, err = decodeString(r); err != nil {
			return nil, fmt.Errorf("decode readlink target: %w", err)
		}
	}
	return res, nil
}

// ReadResult is the reply to READ.
type ReadResult struct {
	Status uint32
	Attr   *FileAttr
	Count  uint32
	EOF    bool
	Data   []byte
}

func encodeReadArgs(h *Handle, offset uint64, count uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, offset); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, count); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeReadResult(data []byte) (*ReadResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &ReadResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode read attr: %w", err)
	}
	if status == OK {
		if err := readUint32(r, &res.Count); err != nil {
			return nil, err
		}
		if res.EOF, err = decodeBool(r); err != nil {
			return nil, err
		}
		if res.Data, err = decodeOpaque(r); err != nil {
			return nil, fmt.Errorf("decode read data: %w", err)
		}
	}
	return res, nil
}

// WriteResult is the reply to WRITE.
type WriteResult struct {
	Status    uint32
	Wcc       *WccData
	Count     uint32
	Committed uint32
	Verf      uint64
}

func encodeWriteArgs(h *Handle, offset uint64, data []byte, stable uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, offset); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, uint32(len(data))); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, stable); err != nil {
		return nil, err
	}
	if err := encodeOpaque(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWriteResult(data []byte) (*WriteResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &WriteResult{Status: status}
	if res.Wcc, err = decodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode write wcc: %w", err)
	}
	if status == OK {
		if err := readUint32(r, &res.Count); err != nil {
			return nil, err
		}
		if err := readUint32(r, &res.Committed); err != nil {
			return nil, err
		}
		if err := readUint64(r, &res.Verf); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// CreateResult is the reply to CREATE.
type CreateResult struct {
	Status  uint32
	Handle  *Handle
	Attr    *FileAttr
	DirWcc  *WccData
}

func encodeCreateArgs(dir *Handle, name string, mode uint32, sa *SetAttr, createMode uint32, verifier uint64) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, createMode); err != nil {
		return nil, err
	}
	if createMode == CreateExclusive {
		if err := writeUint64(&buf, verifier); err != nil {
			return nil, err
		}
	} else {
		if err := encodeSetAttr(&buf, sa); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeCreateResult(data []byte) (*CreateResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &CreateResult{Status: status}
	if status == OK {
		handlePresent, err := decodeBool(r)
		if err != nil {
			return nil, err
		}
		if handlePresent {
			if res.Handle, err = decodeHandle(r); err != nil {
				return nil, fmt.Errorf("decode create handle: %w", err)
			}
		}
		if res.Attr, err = decodePostOpAttr(r); err != nil {
			return nil, fmt.Errorf("decode create attr: %w", err)
		}
	}
	if res.DirWcc, err = decodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode create dir wcc: %w", err)
	}
	return res, nil
}

// MkdirResult is the reply to MKDIR; wire-compatible with CreateResult.
type MkdirResult = CreateResult

func encodeMkdirArgs(dir *Handle, name string, sa *SetAttr) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	if err := encodeSetAttr(&buf, sa); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMkdirResult(data []byte) (*MkdirResult, error) {
	return decodeCreateResult(data)
}

// SymlinkResult is the reply to SYMLINK; wire-compatible with CreateResult.
type SymlinkResult = CreateResult

func encodeSymlinkArgs(dir *Handle, name string, target string, sa *SetAttr) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	if err := encodeSetAttr(&buf, sa); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, target); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSymlinkResult(data []byte) (*SymlinkResult, error) {
	return decodeCreateResult(data)
}

// MknodResult is the reply to MKNOD; wire-compatible with CreateResult.
type MknodResult = CreateResult

func encodeMknodArgs(dir *Handle, name string, fileType uint32, sa *SetAttr, spec SpecData) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, fileType); err != nil {
		return nil, err
	}
	if fileType == FileTypeBlock || fileType == FileTypeChar {
		if err := encodeSetAttr(&buf, sa); err != nil {
			return nil, err
		}
		if err := writeUint32(&buf, spec.Major); err != nil {
			return nil, err
		}
		if err := writeUint32(&buf, spec.Minor); err != nil {
			return nil, err
		}
	} else {
		// Sockets and FIFOs carry only a sattr3, no specdata3.
		if err := encodeSetAttr(&buf, sa); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeMknodResult(data []byte) (*MknodResult, error) {
	return decodeCreateResult(data)
}

// RemoveResult is the reply to REMOVE/RMDIR (both return a wcc_data).
type RemoveResult struct {
	Status uint32
	DirWcc *WccData
}

func encodeRemoveArgs(dir *Handle, name string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRemoveResult(data []byte) (*RemoveResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	wcc, err := decodeWccData(r)
	if err != nil {
		return nil, fmt.Errorf("decode remove wcc: %w", err)
	}
	return &RemoveResult{Status: status, DirWcc: wcc}, nil
}

// RenameResult is the reply to RENAME.
type RenameResult struct {
	Status    uint32
	FromWcc   *WccData
	ToWcc     *WccData
}

func encodeRenameArgs(fromDir *Handle, fromName string, toDir *Handle, toName string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, fromDir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, fromName); err != nil {
		return nil, err
	}
	if err := encodeHandle(&buf, toDir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, toName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRenameResult(data []byte) (*RenameResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &RenameResult{Status: status}
	if res.FromWcc, err = decodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode rename from wcc: %w", err)
	}
	if res.ToWcc, err = decodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode rename to wcc: %w", err)
	}
	return res, nil
}

// LinkResult is the reply to LINK.
type LinkResult struct {
	Status  uint32
	Attr    *FileAttr
	DirWcc  *WccData
}

func encodeLinkArgs(h *Handle, dir *Handle, name string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := encodeString(&buf, name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeLinkResult(data []byte) (*LinkResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &LinkResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode link attr: %w", err)
	}
	if res.DirWcc, err = decodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode link dir wcc: %w", err)
	}
	return res, nil
}

// ReadDirResult is the reply to READDIR.
type ReadDirResult struct {
	Status  uint32
	DirAttr *FileAttr
	Cookie  uint64
	Entries []DirEntry
	EOF     bool
}

func encodeReadDirArgs(dir *Handle, cookie uint64, cookieVerf uint64, count uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, dir); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, cookie); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, cookieVerf); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, count); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeReadDirResult(data []byte) (*ReadDirResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &ReadDirResult{Status: status}
	if res.DirAttr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode readdir attr: %w", err)
	}
	if status != OK {
		return res, nil
	}

	if err := readUint64(r, &res.Cookie); err != nil {
		return nil, fmt.Errorf("decode cookieverf: %w", err)
	}

	for {
		more, err := decodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("decode entry value_follows: %w", err)
		}
		if !more {
			break
		}

		var entry DirEntry
		if err := readUint64(r, &entry.Fileid); err != nil {
			return nil, err
		}
		if entry.Name, err = decodeString(r); err != nil {
			return nil, err
		}
		if err := readUint64(r, &entry.Cookie); err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, entry)
	}

	if res.EOF, err = decodeBool(r); err != nil {
		return nil, fmt.Errorf("decode readdir eof: %w", err)
	}
	return res, nil
}

// FsStatResult is the reply to FSSTAT.
type FsStatResult struct {
	Status uint32
	Attr   *FileAttr
	Stat   *FSStat
}

func encodeFsStatArgs(h *Handle) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFsStatResult(data []byte) (*FsStatResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &FsStatResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode fsstat attr: %w", err)
	}
	if status == OK {
		stat := &FSStat{}
		fields := []*uint64{
			&stat.TotalBytes, &stat.FreeBytes, &stat.AvailBytes,
			&stat.TotalFiles, &stat.FreeFiles, &stat.AvailFiles,
		}
		for _, f := range fields {
			if err := readUint64(r, f); err != nil {
				return nil, fmt.Errorf("decode fsstat field: %w", err)
			}
		}
		if err := readUint32(r, &stat.Invarsec); err != nil {
			return nil, err
		}
		res.Stat = stat
	}
	return res, nil
}

// FsInfoResult is the reply to FSINFO.
type FsInfoResult struct {
	Status uint32
	Attr   *FileAttr
	Info   *FSInfo
}

func encodeFsInfoArgs(h *Handle) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFsInfoResult(data []byte) (*FsInfoResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &FsInfoResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode fsinfo attr: %w", err)
	}
	if status == OK {
		info := &FSInfo{}
		u32fields := []*uint32{&info.RtMax, &info.RtPref, &info.RtMult, &info.WtMax, &info.WtPref, &info.WtMult, &info.DtPref}
		for _, f := range u32fields {
			if err := readUint32(r, f); err != nil {
				return nil, fmt.Errorf("decode fsinfo field: %w", err)
			}
		}
		if err := readUint64(r, &info.MaxFBSz); err != nil {
			return nil, err
		}
		if info.TimeDelta, err = decodeTimeVal(r); err != nil {
			return nil, err
		}
		if err := readUint32(r, &info.Properties); err != nil {
			return nil, err
		}
		res.Info = info
	}
	return res, nil
}

// PathConfResult is the reply to PATHCONF.
type PathConfResult struct {
	Status uint32
	Attr   *FileAttr
	Conf   *PathConf
}

func encodePathConfArgs(h *Handle) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePathConfResult(data []byte) (*PathConfResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &PathConfResult{Status: status}
	if res.Attr, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode pathconf attr: %w", err)
	}
	if status == OK {
		conf := &PathConf{}
		if err := readUint32(r, &conf.LinkMax); err != nil {
			return nil, err
		}
		if err := readUint32(r, &conf.NameMax); err != nil {
			return nil, err
		}
		if conf.NoTrunc, err = decodeBool(r); err != nil {
			return nil, err
		}
		if conf.ChownRestricted, err = decodeBool(r); err != nil {
			return nil, err
		}
		if conf.CaseInsensitive, err = decodeBool(r); err != nil {
			return nil, err
		}
		if conf.CasePreserving, err = decodeBool(r); err != nil {
			return nil, err
		}
		res.Conf = conf
	}
	return res, nil
}

// CommitResult is the reply to COMMIT.
type CommitResult struct {
	Status uint32
	Wcc    *WccData
	Verf   uint64
}

func encodeCommitArgs(h *Handle, offset uint64, count uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeHandle(&buf, h); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, offset); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, count); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCommitResult(data []byte) (*CommitResult, error) {
	r := bytes.NewReader(data)
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	res := &CommitResult{Status: status}
	if res.Wcc, err = decodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode commit wcc: %w", err)
	}
	if status == OK {
		if err := readUint64(r, &res.Verf); err != nil {
			return nil, err
		}
	}
	return res, nil
}
