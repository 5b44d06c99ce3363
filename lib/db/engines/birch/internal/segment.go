package internal

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync/atomic"
)

var segmentLogger = logger.GetLogger("segment")

// --------------------------------------------------------------------------
// Segment (one append-only log file)
// --------------------------------------------------------------------------

// Segment is one log file identified by its ordinal. Every segment holds a
// read handle; only the active segment of a SegmentStore is also written to.
type Segment struct {
	ordinal int
	path    string
	reader  *os.File
	size    atomic.Int64
}

// Ordinal returns the zero-based position of the segment
func (s *Segment) Ordinal() int {
	return s.ordinal
}

// Path returns the file path of the segment
func (s *Segment) Path() string {
	return s.path
}

// Size returns the number of bytes written to the segment
func (s *Segment) Size() int64 {
	return s.size.Load()
}

// --------------------------------------------------------------------------
// SegmentStore
// --------------------------------------------------------------------------

// SegmentStore manages the ordered, gapless sequence of segments in a directory.
// Files are named <prefix>.<ordinal>.<suffix>.
//
// Thread-safety: Rotate, Append and Close must be serialized by the caller.
// ReadAt is safe to call concurrently with Append.
type SegmentStore struct {
	dir      string
	prefix   string
	suffix   string
	maxBytes int64
	pattern  *regexp.Regexp

	segments []*Segment
	writer   *os.File // append handle of the last segment, nil until the first rotation
	cursor   int64    // bytes written to the active segment
}

// segmentFile is a file found while scanning the directory
type segmentFile struct {
	name    string
	ordinal int
}

// OpenSegmentStore scans dir for segment files, renames them to close ordinal gaps
// and opens a read handle for each. No segment is active afterward, so the first
// append requires a Rotate.
func OpenSegmentStore(dir, prefix, suffix string, maxBytes int64) (*SegmentStore, error) {
	s := &SegmentStore{
		dir:      dir,
		prefix:   prefix,
		suffix:   suffix,
		maxBytes: maxBytes,
		pattern:  regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\.(\d+)\.` + regexp.QuoteMeta(suffix) + `$`),
	}

	files, err := s.scan()
	if err != nil {
		return nil, err
	}

	if err := s.repair(files); err != nil {
		return nil, err
	}

	for i := range files {
		seg, err := openSegment(i, s.path(i))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.segments = append(s.segments, seg)
	}

	return s, nil
}

// scan lists all segment files sorted by ordinal
func (s *SegmentStore) scan() ([]segmentFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan segments: %w", err)
	}

	var files []segmentFile
	for _, entry := range entries {
		match := s.pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if !entry.Type().IsRegular() {
			return nil, fmt.Errorf("segment %s is not a regular file", entry.Name())
		}
		ordinal, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("segment %s has an invalid ordinal: %w", entry.Name(), err)
		}
		files = append(files, segmentFile{name: entry.Name(), ordinal: ordinal})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ordinal != files[j].ordinal {
			return files[i].ordinal < files[j].ordinal
		}
		return files[i].name < files[j].name
	})

	return files, nil
}

// repair renames files so that the i-th file is named with ordinal i.
// Relative order and contents are kept.
func (s *SegmentStore) repair(files []segmentFile) error {
	for i, f := range files {
		target := s.name(i)
		if f.name == target {
			continue
		}

		targetPath := filepath.Join(s.dir, target)
		if _, err := os.Lstat(targetPath); err == nil {
			util.RaiseInvariant("segment", "ordinal_collision", "renaming %s would overwrite %s", f.name, target)
			return fmt.Errorf("%w: renaming %s to %s", db.ErrOrdinalCollision, f.name, target)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := os.Rename(filepath.Join(s.dir, f.name), targetPath); err != nil {
			return fmt.Errorf("rename segment %s: %w", f.name, err)
		}
		segmentLogger.Infof("renamed segment %s to %s", f.name, target)
		files[i].name = target
		files[i].ordinal = i
	}
	return nil
}

func openSegment(ordinal int, path string) (*Segment, error) {
	reader, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}

	info, err := reader.Stat()
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("stat segment: %w", err)
	}

	seg := &Segment{ordinal: ordinal, path: path, reader: reader}
	seg.size.Store(info.Size())
	return seg, nil
}

func (s *SegmentStore) name(ordinal int) string {
	return fmt.Sprintf("%s.%d.%s", s.prefix, ordinal, s.suffix)
}

func (s *SegmentStore) path(ordinal int) string {
	return filepath.Join(s.dir, s.name(ordinal))
}

// --------------------------------------------------------------------------
// Rotation and writes
// --------------------------------------------------------------------------

// NeedsRotation reports whether the next append needs a new active segment.
// The size check runs before the append, so a segment can exceed maxBytes by one record.
func (s *SegmentStore) NeedsRotation() bool {
	return s.writer == nil || s.cursor > s.maxBytes
}

// Rotate creates the segment with the next ordinal and makes it active.
// The previous active segment stays readable but is never written again.
func (s *SegmentStore) Rotate() error {
	ordinal := len(s.segments)
	path := s.path(ordinal)

	writer, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o644)
	if errors.Is(err, fs.ErrExist) {
		util.RaiseInvariant("segment", "rotation_collision", "segment %s already exists", path)
		return fmt.Errorf("%w: %s", db.ErrSegmentExists, path)
	} else if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}

	seg, err := openSegment(ordinal, path)
	if err != nil {
		_ = writer.Close()
		return err
	}

	if s.writer != nil {
		// every append already reached the OS, a failing close loses nothing
		if err := s.writer.Close(); err != nil {
			segmentLogger.Warningf("closing writer of segment %d: %v", ordinal-1, err)
		}
	}

	s.segments = append(s.segments, seg)
	s.writer = writer
	s.cursor = 0

	segmentLogger.Debugf("rotated to segment %s", path)
	return nil
}

// Append writes one encoded record line to the active segment and returns the
// segment together with the offset at which the line starts.
// The write is unbuffered, so the bytes reach the OS before Append returns.
func (s *SegmentStore) Append(line []byte) (*Segment, int64, error) {
	if s.writer == nil {
		return nil, 0, errors.New("append without an active segment")
	}

	active := s.segments[len(s.segments)-1]
	offset := s.cursor

	n, err := s.writer.Write(line)
	s.cursor += int64(n)
	active.size.Store(s.cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("append to segment %d: %w", active.ordinal, err)
	}

	return active, offset, nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// ReadAt reads the line starting at offset in seg.
func (s *SegmentStore) ReadAt(seg *Segment, offset int64) ([]byte, error) {
	r := bufio.NewReader(io.NewSectionReader(seg.reader, offset, math.MaxInt64-offset))

	line, err := r.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, fmt.Errorf("read segment %d at %d: %w", seg.ordinal, offset, err)
	}
	return line, nil
}

// Scan calls fn for every complete line of every segment in ordinal order.
// If fn returns an error the rest of that segment is skipped with a warning and
// scanning continues with the next segment. A trailing line without newline is
// treated the same way.
func (s *SegmentStore) Scan(fn func(seg *Segment, offset int64, line []byte) error) error {
	for _, seg := range s.segments {
		r := bufio.NewReader(io.NewSectionReader(seg.reader, 0, seg.Size()))

		var offset int64
		for {
			line, err := r.ReadBytes('\n')
			if errors.Is(err, io.EOF) {
				if len(line) > 0 {
					segmentLogger.Warningf("segment %d ends with a partial record at %d", seg.ordinal, offset)
				}
				break
			} else if err != nil {
				return fmt.Errorf("scan segment %d: %w", seg.ordinal, err)
			}

			if err := fn(seg, offset, line); err != nil {
				segmentLogger.Warningf("skipping rest of segment %d at %d: %v", seg.ordinal, offset, err)
				break
			}
			offset += int64(len(line))
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Accessors and shutdown
// --------------------------------------------------------------------------

// Len returns the number of segments
func (s *SegmentStore) Len() int {
	return len(s.segments)
}

// Segments returns a copy of the segment list ordered by ordinal
func (s *SegmentStore) Segments() []*Segment {
	out := make([]*Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Active returns the segment that receives appends, or nil before the first rotation
func (s *SegmentStore) Active() *Segment {
	if s.writer == nil {
		return nil
	}
	return s.segments[len(s.segments)-1]
}

// Close closes the writer and every read handle.
func (s *SegmentStore) Close() error {
	var errs []error
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
		s.writer = nil
	}
	for _, seg := range s.segments {
		errs = append(errs, seg.reader.Close())
	}
	return errors.Join(errs...)
}
