package mountproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const maxOpaqueLength = 1024 * 1024

func xdrPadding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

func encodeOpaque(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write opaque length: %w", err)
	}
	buf.Write(data)
	buf.Write(make([]byte, xdrPadding(uint32(len(data)))))
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	return encodeOpaque(buf, []byte(s))
}

func decodeOpaque(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read opaque length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds sanity cap", length)
	}
	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("read opaque data: %w", err)
		}
	}
	if padding := xdrPadding(length); padding > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip opaque padding: %w", err)
		}
	}
	return data, nil
}

func decodeString(r io.Reader) (string, error) {
	data, err := decodeOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeBool(r io.Reader) (bool, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return false, err
	}
	return v != 0, nil
}

// ----------------------------------------------------------------------
// MNT (MOUNTPROC3_MNT)
// ----------------------------------------------------------------------

// MntResult is the reply to MNT.
type MntResult struct {
	Status      uint32
	Handle      *Handle
	AuthFlavors []int32
}

func encodeMntArgs(dirPath string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeString(&buf, dirPath); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMntResult(data []byte) (*MntResult, error) {
	r := bytes.NewReader(data)
	var status uint32
	if err := binary.Read(r, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read mnt status: %w", err)
	}
	res := &MntResult{Status: status}
	if status != OK {
		return res, nil
	}

	body, err := decodeOpaque(r)
	if err != nil {
		return nil, fmt.Errorf("read mnt handle: %w", err)
	}
	if res.Handle, err = NewHandle(body); err != nil {
		return nil, err
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read auth flavor count: %w", err)
	}
	res.AuthFlavors = make([]int32, count)
	for i := range res.AuthFlavors {
		if err := binary.Read(r, binary.BigEndian, &res.AuthFlavors[i]); err != nil {
			return nil, fmt.Errorf("read auth flavor %d: %w", i, err)
		}
	}
	return res, nil
}

// ----------------------------------------------------------------------
// UMNT / UMNTALL (MOUNTPROC3_UMNT, MOUNTPROC3_UMNTALL) — both void replies
// ----------------------------------------------------------------------

func encodeUmntArgs(dirPath string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeString(&buf, dirPath); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ----------------------------------------------------------------------
// DUMP (MOUNTPROC3_DUMP)
// ----------------------------------------------------------------------

// DumpEntry is one mountbody in the mountlist DUMP returns: a client
// hostname paired with the directory it currently has mounted.
type DumpEntry struct {
	Hostname  string
	Directory string
}

func decodeDumpResult(data []byte) ([]DumpEntry, error) {
	r := bytes.NewReader(data)
	var entries []DumpEntry
	for {
		more, err := decodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("read dump value_follows: %w", err)
		}
		if !more {
			break
		}
		var entry DumpEntry
		if entry.Hostname, err = decodeString(r); err != nil {
			return nil, fmt.Errorf("read dump hostname: %w", err)
		}
		if entry.Directory, err = decodeString(r); err != nil {
			return nil, fmt.Errorf("read dump directory: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ----------------------------------------------------------------------
// EXPORT (MOUNTPROC3_EXPORT)
// ----------------------------------------------------------------------

// ExportEntry is one exportnode: an exported directory and the client
// groups permitted to mount it.
type ExportEntry struct {
	Directory string
	Groups    []string
}

func decodeExportResult(data []byte) ([]ExportEntry, error) {
	r := bytes.NewReader(data)
	var entries []ExportEntry
	for {
		more, err := decodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("read export value_follows: %w", err)
		}
		if !more {
			break
		}
		var entry ExportEntry
		if entry.Directory, err = decodeString(r); err != nil {
			return nil, fmt.Errorf("read export directory: %w", err)
		}
		for {
			groupMore, err := decodeBool(r)
			if err != nil {
				return nil, fmt.Errorf("read export group value_follows: %w", err)
			}
			if !groupMore {
				break
			}
			group, err := decodeString(r)
			if err != nil {
				return nil, fmt.Errorf("read export group: %w", err)
			}
			entry.Groups = append(entry.Groups, group)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
