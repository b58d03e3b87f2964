// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/siderolabs/gen/optional"
	"go.uber.org/zap"
)

// Record tags.
const (
	TagSuperblock = "SUPERBLOCK"
	TagGroup      = "GROUP"
	TagBlockFree  = "BFREE"
	TagInodeFree  = "IFREE"
	TagInode      = "INODE"
	TagDirEnt     = "DIRENT"
	TagIndirect   = "INDIRECT"
)

// Field counts including the tag.
const (
	superblockFields    = 8
	groupFields         = 9
	freeFields          = 2
	inodeFields         = 12
	inodePointersFields = inodeFields + BlockPointers
	dirEntMinFields     = 7
	indirectFields      = 6
)

const maxLineLength = 1024 * 1024

var (
	// ErrMalformedRecord is returned for records with the wrong shape.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDuplicateSuperblock is returned when the dump has more than one superblock.
	ErrDuplicateSuperblock = errors.New("duplicate superblock record")
)

// Read parses the whole dump.
//
// Every malformed line is reported, the returned error is a *multierror.Error in that case.
func Read(r io.Reader, logger *zap.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		snap   Snapshot
		result *multierror.Error
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := snap.add(line, logger.With(zap.Int("line", lineNo))); err != nil {
			result = multierror.Append(result, fmt.Errorf("line %d: %w", lineNo, err))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	logger.Debug("snapshot loaded",
		zap.Int("lines", lineNo),
		zap.Int("inodes", len(snap.Inodes)),
		zap.Int("dirents", len(snap.DirEnts)),
		zap.Int("indirects", len(snap.Indirects)),
		zap.Int("free_blocks", len(snap.FreeBlocks)),
		zap.Int("free_inodes", len(snap.FreeInodes)),
	)

	return &snap, nil
}

//nolint:gocyclo
func (snap *Snapshot) add(line string, logger *zap.Logger) error {
	values := strings.Split(line, ",")
	tag := strings.TrimSpace(values[0])

	switch tag {
	case TagSuperblock:
		if _, ok := snap.Superblock.Get(); ok {
			return ErrDuplicateSuperblock
		}

		sb, err := parseSuperblock(values)
		if err != nil {
			return err
		}

		snap.Superblock = optional.Some(sb)
	case TagGroup:
		group, err := parseGroup(values)
		if err != nil {
			return err
		}

		if _, ok := snap.Group.Get(); ok {
			logger.Warn("ignoring extra block group, only the first group is checked", zap.Int64("group", group.Number))

			return nil
		}

		snap.Group = optional.Some(group)
	case TagBlockFree:
		f, err := newFields(values, freeFields)
		if err != nil {
			return err
		}

		block := BlockNumber(f.int(1))

		if f.err != nil {
			return f.err
		}

		snap.FreeBlocks = append(snap.FreeBlocks, block)
	case TagInodeFree:
		f, err := newFields(values, freeFields)
		if err != nil {
			return err
		}

		inode := InodeNumber(f.int(1))

		if f.err != nil {
			return f.err
		}

		snap.FreeInodes = append(snap.FreeInodes, inode)
	case TagInode:
		inode, err := parseInode(values)
		if err != nil {
			return err
		}

		snap.Inodes = append(snap.Inodes, inode)
	case TagDirEnt:
		dirent, err := parseDirEnt(values)
		if err != nil {
			return err
		}

		snap.DirEnts = append(snap.DirEnts, dirent)
	case TagIndirect:
		indirect, err := parseIndirect(values)
		if err != nil {
			return err
		}

		snap.Indirects = append(snap.Indirects, indirect)
	default:
		logger.Warn("skipping unknown record", zap.String("tag", tag))
	}

	return nil
}

// fields wraps positional access to a record, the first conversion error sticks.
type fields struct {
	tag    string
	values []string
	err    error
}

func newFields(values []string, expected int) (*fields, error) {
	if len(values) != expected {
		return nil, fmt.Errorf("%w: %s record has %d fields, expected %d", ErrMalformedRecord, values[0], len(values), expected)
	}

	return &fields{tag: values[0], values: values}, nil
}

func (f *fields) parse(idx, base int) int64 {
	if f.err != nil {
		return 0
	}

	v, err := strconv.ParseInt(strings.TrimSpace(f.values[idx]), base, 64)
	if err != nil {
		f.err = fmt.Errorf("%w: %s field %d: %q is not a number", ErrMalformedRecord, f.tag, idx, f.values[idx])
	}

	return v
}

func (f *fields) int(idx int) int64 {
	return f.parse(idx, 10)
}

func (f *fields) octal(idx int) int64 {
	return f.parse(idx, 8)
}

func (f *fields) str(idx int) string {
	return strings.TrimSpace(f.values[idx])
}

func parseSuperblock(values []string) (Superblock, error) {
	f, err := newFields(values, superblockFields)
	if err != nil {
		return Superblock{}, err
	}

	sb := Superblock{
		TotalBlocks:           f.int(1),
		TotalInodes:           f.int(2),
		BlockSize:             f.int(3),
		InodeSize:             f.int(4),
		BlocksPerGroup:        f.int(5),
		InodesPerGroup:        f.int(6),
		FirstNonReservedInode: InodeNumber(f.int(7)),
	}

	return sb, f.err
}

func parseGroup(values []string) (Group, error) {
	f, err := newFields(values, groupFields)
	if err != nil {
		return Group{}, err
	}

	group := Group{
		Number:      f.int(1),
		Blocks:      f.int(2),
		Inodes:      f.int(3),
		FreeBlocks:  f.int(4),
		FreeInodes:  f.int(5),
		BlockBitmap: BlockNumber(f.int(6)),
		InodeBitmap: BlockNumber(f.int(7)),
		InodeTable:  BlockNumber(f.int(8)),
	}

	return group, f.err
}

func parseInode(values []string) (Inode, error) {
	expected := inodePointersFields
	if len(values) == inodeFields {
		// inline symlinks are dumped without block pointers
		expected = inodeFields
	}

	f, err := newFields(values, expected)
	if err != nil {
		return Inode{}, err
	}

	inode := Inode{
		Number:     InodeNumber(f.int(1)),
		Mode:       uint32(f.octal(3)),
		Owner:      f.int(4),
		Group:      f.int(5),
		LinkCount:  f.int(6),
		ChangeTime: f.str(7),
		ModifyTime: f.str(8),
		AccessTime: f.str(9),
		Size:       f.int(10),
		Blocks:     f.int(11),
	}

	switch fileType := f.str(2); len(fileType) {
	case 1:
		inode.Type = FileType(fileType[0])
	default:
		return Inode{}, fmt.Errorf("%w: %s field 2: invalid file type %q", ErrMalformedRecord, TagInode, fileType)
	}

	if expected == inodePointersFields {
		for slot := range BlockPointers {
			inode.Pointers[slot] = BlockNumber(f.int(inodeFields + slot))
		}
	}

	return inode, f.err
}

func parseDirEnt(values []string) (DirEnt, error) {
	if len(values) < dirEntMinFields {
		return DirEnt{}, fmt.Errorf("%w: %s record has %d fields, expected %d", ErrMalformedRecord, TagDirEnt, len(values), dirEntMinFields)
	}

	// names may contain commas
	name := strings.Join(values[dirEntMinFields-1:], ",")

	f, err := newFields(append(values[:dirEntMinFields-1:dirEntMinFields-1], name), dirEntMinFields)
	if err != nil {
		return DirEnt{}, err
	}

	dirent := DirEnt{
		Parent:       InodeNumber(f.int(1)),
		Offset:       f.int(2),
		Inode:        InodeNumber(f.int(3)),
		RecordLength: f.int(4),
		NameLength:   f.int(5),
		Name:         unquote(name),
	}

	return dirent, f.err
}

func parseIndirect(values []string) (Indirect, error) {
	f, err := newFields(values, indirectFields)
	if err != nil {
		return Indirect{}, err
	}

	indirect := Indirect{
		Inode:         InodeNumber(f.int(1)),
		Level:         Level(f.int(2)),
		Offset:        f.int(3),
		IndirectBlock: BlockNumber(f.int(4)),
		Block:         BlockNumber(f.int(5)),
	}

	if f.err != nil {
		return Indirect{}, f.err
	}

	if indirect.Level < LevelSingle || indirect.Level > LevelTriple {
		return Indirect{}, fmt.Errorf("%w: %s field 2: invalid level %d", ErrMalformedRecord, TagIndirect, indirect.Level)
	}

	return indirect, nil
}

func unquote(name string) string {
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		return name[1 : len(name)-1]
	}

	return name
}
