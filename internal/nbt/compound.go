package nbt

// Compound 是带名字段的容器，保留插入顺序以获得确定性的编码结果。
type Compound struct {
	keys   []string
	values map[string]Tag
}

// NewCompound returns an empty compound.
func NewCompound() *Compound {
	return &Compound{values: make(map[string]Tag)}
}

func (*Compound) Type() TagType { return TagCompound }

// Put 写入或覆盖字段；覆盖时保留原有位置。
func (c *Compound) Put(key string, tag Tag) *Compound {
	if c.values == nil {
		c.values = make(map[string]Tag)
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = tag
	return c
}

func (c *Compound) PutByte(key string, v int8) *Compound {
	return c.Put(key, Byte(v))
}

func (c *Compound) PutShort(key string, v int16) *Compound {
	return c.Put(key, Short(v))
}

func (c *Compound) PutInt(key string, v int32) *Compound {
	return c.Put(key, Int(v))
}

func (c *Compound) PutLong(key string, v int64) *Compound {
	return c.Put(key, Long(v))
}

func (c *Compound) PutFloat(key string, v float32) *Compound {
	return c.Put(key, Float(v))
}

func (c *Compound) PutDouble(key string, v float64) *Compound {
	return c.Put(key, Double(v))
}

func (c *Compound) PutString(key string, v string) *Compound {
	return c.Put(key, String(v))
}

func (c *Compound) PutIntArray(key string, v []int32) *Compound {
	return c.Put(key, IntArray(v))
}

// PutBool 以 0/1 字节形式写入布尔值。
func (c *Compound) PutBool(key string, v bool) *Compound {
	if v {
		return c.Put(key, Byte(1))
	}
	return c.Put(key, Byte(0))
}

// Get returns the tag stored under key.
func (c *Compound) Get(key string) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	tag, ok := c.values[key]
	return tag, ok
}

// Has reports whether key is present.
func (c *Compound) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Remove 删除字段并返回是否存在。
func (c *Compound) Remove(key string) bool {
	if c == nil {
		return false
	}
	if _, ok := c.values[key]; !ok {
		return false
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the field names in insertion order.
func (c *Compound) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Len returns the number of fields.
func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

func (c *Compound) GetString(key string) (string, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return "", false
	}
	v, ok := tag.(String)
	return string(v), ok
}

func (c *Compound) GetByte(key string) (int8, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := tag.(Byte)
	return int8(v), ok
}

func (c *Compound) GetShort(key string) (int16, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := tag.(Short)
	return int16(v), ok
}

func (c *Compound) GetInt(key string) (int32, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := tag.(Int)
	return int32(v), ok
}

func (c *Compound) GetLong(key string) (int64, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := tag.(Long)
	return int64(v), ok
}

func (c *Compound) GetFloat(key string) (float32, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := tag.(Float)
	return float32(v), ok
}

func (c *Compound) GetIntArray(key string) ([]int32, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := tag.(IntArray)
	return []int32(v), ok
}

func (c *Compound) GetList(key string) (*List, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := tag.(*List)
	return v, ok
}

func (c *Compound) GetCompound(key string) (*Compound, bool) {
	tag, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := tag.(*Compound)
	return v, ok
}

// Equal reports deep equality; field order is ignored.
func (c *Compound) Equal(other *Compound) bool {
	if c == nil || other == nil {
		return c.Len() == 0 && other.Len() == 0
	}
	if len(c.keys) != len(other.keys) {
		return false
	}
	for _, key := range c.keys {
		ov, ok := other.values[key]
		if !ok || !equalTag(c.values[key], ov) {
			return false
		}
	}
	return true
}
