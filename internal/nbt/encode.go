package nbt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const maxStringBytes = math.MaxUint16

// Marshal 编码一个无名根 compound，region 槽位中的记录即使用此格式。
func Marshal(root *Compound) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, "", root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 写入完整的根标签（类型、名字、负载）。
func Write(w io.Writer, name string, root *Compound) error {
	if root == nil {
		return fmt.Errorf("nbt: nil root compound")
	}
	e := encoder{buf: make([]byte, 0, 256)}
	e.buf = append(e.buf, byte(TagCompound))
	if err := e.writeString(name); err != nil {
		return err
	}
	if err := e.writeCompound(root, "", 0); err != nil {
		return err
	}
	_, err := w.Write(e.buf)
	return err
}

type encoder struct {
	buf []byte
}

func (e *encoder) writeString(s string) error {
	start := len(e.buf)
	e.buf = append(e.buf, 0, 0)
	e.buf = appendMUTF8(e.buf, s)
	n := len(e.buf) - start - 2
	if n > maxStringBytes {
		return fmt.Errorf("nbt: string of %d bytes exceeds %d", n, maxStringBytes)
	}
	binary.BigEndian.PutUint16(e.buf[start:], uint16(n))
	return nil
}

func (e *encoder) writeCompound(c *Compound, path string, depth int) error {
	if depth >= MaxDepth {
		return fmt.Errorf("%w at %s", ErrMaxDepth, pathOrRoot(path))
	}
	for _, key := range c.keys {
		tag := c.values[key]
		if tag == nil {
			return fmt.Errorf("nbt: nil value at %s", joinPath(path, key))
		}
		e.buf = append(e.buf, byte(tag.Type()))
		if err := e.writeString(key); err != nil {
			return fmt.Errorf("%s: %w", joinPath(path, key), err)
		}
		if err := e.writePayload(tag, joinPath(path, key), depth+1); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, byte(TagEnd))
	return nil
}

func (e *encoder) writePayload(tag Tag, path string, depth int) error {
	switch v := tag.(type) {
	case Byte:
		e.buf = append(e.buf, byte(v))
	case Short:
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
	case Int:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	case Long:
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	case Float:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(float32(v)))
	case Double:
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(float64(v)))
	case ByteArray:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		e.buf = append(e.buf, v...)
	case String:
		if err := e.writeString(string(v)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	case *List:
		return e.writeList(v, path, depth)
	case *Compound:
		return e.writeCompound(v, path, depth)
	case IntArray:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		for _, x := range v {
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(x))
		}
	case LongArray:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		for _, x := range v {
			e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(x))
		}
	default:
		return fmt.Errorf("nbt: unsupported tag %T at %s", tag, path)
	}
	return nil
}

func (e *encoder) writeList(l *List, path string, depth int) error {
	if depth >= MaxDepth {
		return fmt.Errorf("%w at %s", ErrMaxDepth, path)
	}
	elem := l.Elem
	if len(l.Items) == 0 {
		elem = TagEnd
	}
	e.buf = append(e.buf, byte(elem))
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(l.Items)))
	for i, item := range l.Items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil || item.Type() != elem {
			return fmt.Errorf("nbt: list element type mismatch at %s: want %s", itemPath, elem)
		}
		if err := e.writePayload(item, itemPath, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
