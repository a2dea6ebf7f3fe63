package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const (
	SectorSize = 4096

	headerSectors  = 2
	headerBytes    = headerSectors * SectorSize
	maxSectorCount = 255
	// 长度字段(4) + 压缩类型(1)
	chunkHeaderBytes = 5
)

// 槽位负载的压缩类型。
const (
	CompressionGzip byte = 1
	CompressionZlib byte = 2
	CompressionNone byte = 3
)

var (
	// ErrNotFound 表示槽位为空。
	ErrNotFound = errors.New("region: cell not present")
	// ErrPayloadTooLarge 表示压缩后负载超过 255 个扇区。
	ErrPayloadTooLarge = errors.New("region: payload exceeds maximum slot size")
	// ErrUnsupportedCompression 表示遇到无法解码的压缩类型。
	ErrUnsupportedCompression = errors.New("region: unsupported compression type")
	// ErrClosed 表示文件句柄已提交或放弃。
	ErrClosed = errors.New("region: file handle closed")
)

// File 是一个 region 文件的写句柄，所有修改都落在同目录的工作副本中，
// 直到 Commit 原子替换正式文件。
type File struct {
	path     string
	workPath string
	work     *os.File

	locations  [slotCount]uint32
	timestamps [slotCount]uint32
	used       []bool

	now    func() time.Time
	closed bool
}

// OpenFile 为 path 建立工作副本；path 不存在时从空 header 开始。
func OpenFile(path string, now func() time.Time) (*File, error) {
	if now == nil {
		now = time.Now
	}
	dir := filepath.Dir(path)
	work, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create working copy of %s: %w", path, err)
	}
	f := &File{
		path:     path,
		workPath: work.Name(),
		work:     work,
		now:      now,
	}
	if err := f.load(); err != nil {
		f.Abort()
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	size, err := f.copyLive()
	if err != nil {
		return err
	}
	if size < headerBytes {
		// 残缺文件按空文件处理。
		if err := f.work.Truncate(0); err != nil {
			return err
		}
		if _, err := f.work.WriteAt(make([]byte, headerBytes), 0); err != nil {
			return err
		}
		size = headerBytes
	}

	header := make([]byte, headerBytes)
	if _, err := f.work.ReadAt(header, 0); err != nil {
		return fmt.Errorf("read region header %s: %w", f.path, err)
	}
	sectors := int((size + SectorSize - 1) / SectorSize)
	f.used = make([]bool, sectors)
	for i := 0; i < headerSectors; i++ {
		f.used[i] = true
	}

	var dropped []int
	for i := 0; i < slotCount; i++ {
		f.locations[i] = binary.BigEndian.Uint32(header[i*4:])
		f.timestamps[i] = binary.BigEndian.Uint32(header[SectorSize+i*4:])
		loc := f.locations[i]
		if loc == 0 {
			continue
		}
		offset, count := int(loc>>8), int(loc&0xFF)
		if offset < headerSectors || count == 0 || offset+count > sectors || f.anyUsed(offset, count) {
			dropped = append(dropped, i)
			continue
		}
		f.mark(offset, count, true)
	}
	for _, i := range dropped {
		if err := f.setSlot(i, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) copyLive() (int64, error) {
	live, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer live.Close()
	n, err := io.Copy(f.work, live)
	if err != nil {
		return 0, fmt.Errorf("copy region %s: %w", f.path, err)
	}
	return n, nil
}

// Path returns the live file path this handle commits to.
func (f *File) Path() string {
	return f.path
}

// WriteCell 压缩 payload 并写入 (localX, localZ) 槽位，同一槽位重复写入以最后一次为准。
// 新负载总是写入未被当前槽位占用的扇区，并在 fsync 之后才更新槽位字。
func (f *File) WriteCell(localX, localZ int, payload []byte) error {
	if f.closed {
		return ErrClosed
	}
	idx, err := slotOf(localX, localZ)
	if err != nil {
		return err
	}

	framed, err := frameZlib(payload)
	if err != nil {
		return err
	}
	count := (len(framed) + SectorSize - 1) / SectorSize
	if count > maxSectorCount {
		return fmt.Errorf("%w: %d sectors", ErrPayloadTooLarge, count)
	}
	padded := make([]byte, count*SectorSize)
	copy(padded, framed)

	start := f.allocate(count)
	if _, err := f.work.WriteAt(padded, int64(start)*SectorSize); err != nil {
		return fmt.Errorf("write region payload: %w", err)
	}
	if err := f.work.Sync(); err != nil {
		return fmt.Errorf("sync region payload: %w", err)
	}

	old := f.locations[idx]
	if err := f.setSlot(idx, uint32(start)<<8|uint32(count), uint32(f.now().Unix())); err != nil {
		return err
	}
	f.mark(start, count, true)
	if old != 0 {
		f.mark(int(old>>8), int(old&0xFF), false)
	}
	return nil
}

// ReadCell 返回槽位中解压后的负载。
func (f *File) ReadCell(localX, localZ int) ([]byte, error) {
	if f.closed {
		return nil, ErrClosed
	}
	idx, err := slotOf(localX, localZ)
	if err != nil {
		return nil, err
	}
	return readSlot(f.work, f.locations[idx])
}

// Timestamp 返回槽位最近一次写入的 unix 秒数。
func (f *File) Timestamp(localX, localZ int) uint32 {
	idx, err := slotOf(localX, localZ)
	if err != nil {
		return 0
	}
	return f.timestamps[idx]
}

// Commit 同步工作副本并 rename 覆盖正式文件。
func (f *File) Commit() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	if err := f.work.Truncate(int64(len(f.used)) * SectorSize); err != nil {
		f.discard()
		return fmt.Errorf("pad region %s: %w", f.path, err)
	}
	if err := f.work.Sync(); err != nil {
		f.discard()
		return fmt.Errorf("sync region %s: %w", f.path, err)
	}
	if err := f.work.Close(); err != nil {
		os.Remove(f.workPath)
		return fmt.Errorf("close region %s: %w", f.path, err)
	}
	if err := os.Rename(f.workPath, f.path); err != nil {
		os.Remove(f.workPath)
		return fmt.Errorf("commit region %s: %w", f.path, err)
	}
	syncDir(filepath.Dir(f.path))
	return nil
}

// Abort 丢弃工作副本，正式文件保持不变。重复调用无副作用。
func (f *File) Abort() {
	if f.closed {
		return
	}
	f.closed = true
	f.discard()
}

func (f *File) discard() {
	f.work.Close()
	os.Remove(f.workPath)
}

func (f *File) setSlot(idx int, loc, stamp uint32) error {
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], loc)
	if _, err := f.work.WriteAt(word[:], int64(idx)*4); err != nil {
		return fmt.Errorf("write slot location: %w", err)
	}
	binary.BigEndian.PutUint32(word[:], stamp)
	if _, err := f.work.WriteAt(word[:], SectorSize+int64(idx)*4); err != nil {
		return fmt.Errorf("write slot timestamp: %w", err)
	}
	f.locations[idx] = loc
	f.timestamps[idx] = stamp
	return nil
}

// allocate 首次适配空闲扇区，找不到则追加到文件末尾。
func (f *File) allocate(count int) int {
	run := 0
	for i := headerSectors; i < len(f.used); i++ {
		if f.used[i] {
			run = 0
			continue
		}
		run++
		if run == count {
			return i - count + 1
		}
	}
	start := len(f.used) - run
	for len(f.used) < start+count {
		f.used = append(f.used, false)
	}
	return start
}

func (f *File) anyUsed(offset, count int) bool {
	for i := offset; i < offset+count; i++ {
		if f.used[i] {
			return true
		}
	}
	return false
}

func (f *File) mark(offset, count int, used bool) {
	for i := offset; i < offset+count && i < len(f.used); i++ {
		f.used[i] = used
	}
}

func slotOf(localX, localZ int) (int, error) {
	if localX < 0 || localX >= Size || localZ < 0 || localZ >= Size {
		return 0, fmt.Errorf("region: local coordinate (%d,%d) out of range", localX, localZ)
	}
	return SlotIndex(localX, localZ), nil
}

func frameZlib(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, chunkHeaderBytes))
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	framed := buf.Bytes()
	binary.BigEndian.PutUint32(framed, uint32(len(framed)-4))
	framed[4] = CompressionZlib
	return framed, nil
}

func readSlot(r io.ReaderAt, loc uint32) ([]byte, error) {
	if loc == 0 {
		return nil, ErrNotFound
	}
	offset, count := int64(loc>>8), int64(loc&0xFF)
	var header [chunkHeaderBytes]byte
	if _, err := r.ReadAt(header[:], offset*SectorSize); err != nil {
		return nil, fmt.Errorf("read slot header: %w", err)
	}
	length := int64(binary.BigEndian.Uint32(header[:4]))
	if length < 1 || length+4 > count*SectorSize {
		return nil, fmt.Errorf("region: corrupt slot length %d", length)
	}
	data := make([]byte, length-1)
	if _, err := r.ReadAt(data, offset*SectorSize+chunkHeaderBytes); err != nil {
		return nil, fmt.Errorf("read slot payload: %w", err)
	}

	switch header[4] {
	case CompressionNone:
		return data, nil
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, header[4])
	}
}

// ReadCell 直接从已提交的 region 目录中读取某个 cell 的负载。
func ReadCell(dir string, cellX, cellZ int32) ([]byte, error) {
	pos, lx, lz := Locate(cellX, cellZ)
	live, err := os.Open(filepath.Join(dir, pos.FileName()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer live.Close()

	var word [4]byte
	if _, err := live.ReadAt(word[:], int64(SlotIndex(lx, lz))*4); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return readSlot(live, binary.BigEndian.Uint32(word[:]))
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
