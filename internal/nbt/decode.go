package nbt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxDepth 与外部加载器的嵌套上限保持一致。
const MaxDepth = 512

// ErrMaxDepth 表示嵌套层级超过 MaxDepth。
var ErrMaxDepth = errors.New("nbt: maximum nesting depth exceeded")

// 单次预分配上限，防止损坏的长度字段触发超大分配。
const maxPrealloc = 4096

// Unmarshal 解码 Marshal 产出的字节。
func Unmarshal(data []byte) (*Compound, error) {
	_, root, err := Read(bytes.NewReader(data))
	return root, err
}

// Read 读取一个根 compound 并返回其名字。
func Read(r io.Reader) (string, *Compound, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		buffered := bufio.NewReader(r)
		r, br = buffered, buffered
	}
	d := decoder{r: r, br: br}

	typ, err := d.readByte()
	if err != nil {
		return "", nil, err
	}
	if TagType(typ) != TagCompound {
		return "", nil, fmt.Errorf("nbt: root must be %s, got %s", TagCompound, TagType(typ))
	}
	name, err := d.readString()
	if err != nil {
		return "", nil, err
	}
	root, err := d.readCompound(0)
	if err != nil {
		return "", nil, err
	}
	return name, root, nil
}

type decoder struct {
	r       io.Reader
	br      io.ByteReader
	scratch [8]byte
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.br.ReadByte()
	if err != nil {
		return 0, unexpected(err)
	}
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.scratch[:n]); err != nil {
		return nil, unexpected(err)
	}
	return d.scratch[:n], nil
}

func (d *decoder) readUint16() (uint16, error) {
	b, err := d.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) readUint32() (uint32, error) {
	b, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) readUint64() (uint64, error) {
	b, err := d.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) readLength() (int, error) {
	n, err := d.readUint32()
	if err != nil {
		return 0, err
	}
	if int32(n) < 0 {
		return 0, fmt.Errorf("nbt: negative length %d", int32(n))
	}
	return int(n), nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return "", unexpected(err)
	}
	return decodeMUTF8(raw)
}

func (d *decoder) readCompound(depth int) (*Compound, error) {
	if depth >= MaxDepth {
		return nil, ErrMaxDepth
	}
	c := NewCompound()
	for {
		typ, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if TagType(typ) == TagEnd {
			return c, nil
		}
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		tag, err := d.readPayload(TagType(typ), depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		c.Put(key, tag)
	}
}

func (d *decoder) readPayload(typ TagType, depth int) (Tag, error) {
	switch typ {
	case TagByte:
		b, err := d.readByte()
		return Byte(int8(b)), err
	case TagShort:
		v, err := d.readUint16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.readUint32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.readUint64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.readUint32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.readUint64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.Grow(min(n, maxPrealloc))
		if _, err := io.CopyN(&buf, d.r, int64(n)); err != nil {
			return nil, unexpected(err)
		}
		return ByteArray(buf.Bytes()), nil
	case TagString:
		s, err := d.readString()
		return String(s), err
	case TagList:
		return d.readList(depth)
	case TagCompound:
		return d.readCompound(depth)
	case TagIntArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		out := make(IntArray, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			v, err := d.readUint32()
			if err != nil {
				return nil, err
			}
			out = append(out, int32(v))
		}
		return out, nil
	case TagLongArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		out := make(LongArray, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			v, err := d.readUint64()
			if err != nil {
				return nil, err
			}
			out = append(out, int64(v))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("nbt: unknown tag type %d", byte(typ))
	}
}

func (d *decoder) readList(depth int) (Tag, error) {
	if depth >= MaxDepth {
		return nil, ErrMaxDepth
	}
	elem, err := d.readByte()
	if err != nil {
		return nil, err
	}
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if TagType(elem) == TagEnd && n > 0 {
		return nil, fmt.Errorf("nbt: non-empty list of %s", TagEnd)
	}
	list := &List{Elem: TagType(elem), Items: make([]Tag, 0, min(n, maxPrealloc))}
	for i := 0; i < n; i++ {
		item, err := d.readPayload(TagType(elem), depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
