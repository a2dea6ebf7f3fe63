package nbt

import (
	"fmt"
	"math"
)

// TagType 是线上格式中的一字节类型标识，数值不可变更。
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	TagEnd:       "TAG_End",
	TagByte:      "TAG_Byte",
	TagShort:     "TAG_Short",
	TagInt:       "TAG_Int",
	TagLong:      "TAG_Long",
	TagFloat:     "TAG_Float",
	TagDouble:    "TAG_Double",
	TagByteArray: "TAG_Byte_Array",
	TagString:    "TAG_String",
	TagList:      "TAG_List",
	TagCompound:  "TAG_Compound",
	TagIntArray:  "TAG_Int_Array",
	TagLongArray: "TAG_Long_Array",
}

func (t TagType) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TAG_Unknown(%d)", byte(t))
}

// Tag 是所有叶子与容器类型的公共接口。
type Tag interface {
	Type() TagType
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() TagType      { return TagByte }
func (Short) Type() TagType     { return TagShort }
func (Int) Type() TagType       { return TagInt }
func (Long) Type() TagType      { return TagLong }
func (Float) Type() TagType     { return TagFloat }
func (Double) Type() TagType    { return TagDouble }
func (ByteArray) Type() TagType { return TagByteArray }
func (String) Type() TagType    { return TagString }
func (IntArray) Type() TagType  { return TagIntArray }
func (LongArray) Type() TagType { return TagLongArray }

// List 是同构列表；空列表的 Elem 允许为 TagEnd。
type List struct {
	Elem  TagType
	Items []Tag
}

func (*List) Type() TagType { return TagList }

// NewList 构造元素类型为 elem 的列表，元素类型不一致会在编码阶段报错。
func NewList(elem TagType, items ...Tag) *List {
	return &List{Elem: elem, Items: items}
}

// DoubleList 便于写入 Pos/Motion 这类三元组。
func DoubleList(values ...float64) *List {
	items := make([]Tag, len(values))
	for i, v := range values {
		items[i] = Double(v)
	}
	return &List{Elem: TagDouble, Items: items}
}

// FloatList 便于写入 Rotation 等 float 列表。
func FloatList(values ...float32) *List {
	items := make([]Tag, len(values))
	for i, v := range values {
		items[i] = Float(v)
	}
	return &List{Elem: TagFloat, Items: items}
}

// Add 追加一个元素；首个元素决定空列表的 Elem。
func (l *List) Add(tag Tag) {
	if len(l.Items) == 0 && l.Elem == TagEnd {
		l.Elem = tag.Type()
	}
	l.Items = append(l.Items, tag)
}

// Len returns the number of items.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Equal reports deep equality, treating compounds as unordered.
func (l *List) Equal(other *List) bool {
	if l == nil || other == nil {
		return l == other
	}
	if len(l.Items) != len(other.Items) {
		return false
	}
	if len(l.Items) > 0 && l.Elem != other.Elem {
		return false
	}
	for i := range l.Items {
		if !equalTag(l.Items[i], other.Items[i]) {
			return false
		}
	}
	return true
}

func equalTag(a, b Tag) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case Float:
		return math.Float32bits(float32(av)) == math.Float32bits(float32(b.(Float)))
	case Double:
		return math.Float64bits(float64(av)) == math.Float64bits(float64(b.(Double)))
	case ByteArray:
		return equalSlice(av, b.(ByteArray))
	case IntArray:
		return equalSlice(av, b.(IntArray))
	case LongArray:
		return equalSlice(av, b.(LongArray))
	case *List:
		return av.Equal(b.(*List))
	case *Compound:
		return av.Equal(b.(*Compound))
	default:
		return a == b
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
