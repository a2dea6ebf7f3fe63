package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// BackupSuffix 是 BackupAndReplace 保留旧文件时追加的后缀。
const BackupSuffix = "_old"

// 测试中替换以模拟中途失败。
var rename = os.Rename

// WriteAtomic 将 body 写入 dir/name：先写同目录临时文件并 fsync，再 rename 覆盖。
func (s *Session) WriteAtomic(ctx context.Context, dir, name string, body io.Reader) (int64, error) {
	target := filepath.Join(dir, name)
	unlock := s.lockPath(target)
	defer unlock()

	tempName, written, err := writeTemp(ctx, dir, name, body)
	if err != nil {
		return 0, err
	}
	if err := rename(tempName, target); err != nil {
		os.Remove(tempName)
		return 0, err
	}
	return written, nil
}

// BackupAndReplace 以 <name>_old 备份现有文件后用新内容替换 dir/name。
// 最后一步 rename 失败时会尝试把备份恢复为正式文件，临时文件总会被清理。
func (s *Session) BackupAndReplace(ctx context.Context, dir, name string, body io.Reader) (int64, error) {
	target := filepath.Join(dir, name)
	backup := target + BackupSuffix
	unlock := s.lockPath(target)
	defer unlock()

	tempName, written, err := writeTemp(ctx, dir, name, body)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tempName)
		return 0, err
	}

	hadCurrent := true
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		hadCurrent = false
	}
	if hadCurrent {
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			os.Remove(tempName)
			return 0, fmt.Errorf("remove stale backup: %w", err)
		}
		if err := rename(target, backup); err != nil {
			os.Remove(tempName)
			return 0, fmt.Errorf("backup %s: %w", name, err)
		}
	}
	if err := rename(tempName, target); err != nil {
		os.Remove(tempName)
		if hadCurrent {
			if restoreErr := rename(backup, target); restoreErr != nil {
				return 0, errors.Join(fmt.Errorf("replace %s: %w", name, err), fmt.Errorf("restore backup: %w", restoreErr))
			}
		}
		return 0, fmt.Errorf("replace %s: %w", name, err)
	}
	return written, nil
}

// writeTemp 在 dir 中创建 <name>.*.tmp 临时文件并写满、fsync、关闭。
// 后缀不沿用 name 的扩展名，崩溃残留的临时文件不会被按扩展名扫描的加载方读入。
func writeTemp(ctx context.Context, dir, name string, body io.Reader) (string, int64, error) {
	tempFile, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", 0, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return "", 0, err
	}
	return tempName, written, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
