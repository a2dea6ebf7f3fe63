package nbt

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// WriteCompressed 以 gzip 帧写出无名根 compound，对应独立的 .dat 文件格式。
func WriteCompressed(w io.Writer, root *Compound) error {
	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)
	if err := Write(bw, "", root); err != nil {
		zw.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadCompressed 读取 gzip 帧包裹的根 compound。
func ReadCompressed(r io.Reader) (*Compound, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("nbt: open gzip stream: %w", err)
	}
	defer zr.Close()
	_, root, err := Read(zr)
	return root, err
}
